// Package kernel is the discrete-event physical layer the request
// orchestrator drives: an event timeline on a stepped clock, single-qubit
// memories, optical channels, relay detectors and the entanglement
// generation and swapping protocols that run on top of them.
package kernel

import (
	"container/heap"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/signalsfoundry/repeater-blackhole-sim/timectrl"
)

var (
	ErrReceiverExists  = errors.New("receiver already registered")
	ErrUnknownReceiver = errors.New("unknown receiver")
	ErrNoChannel       = errors.New("no channel between entities")
	ErrNotPaired       = errors.New("protocol is not paired")
)

// Epoch is the wall-clock instant every timeline starts from. Only the
// elapsed duration is meaningful.
var Epoch = time.Unix(0, 0).UTC()

// Receiver is an entity that accepts classical messages.
type Receiver interface {
	Name() string
	ReceiveMessage(src string, msg Message)
}

// PhotonReceiver is an entity at the far end of a quantum channel.
type PhotonReceiver interface {
	Receiver
	ReceivePhoton(p Photon)
}

type event struct {
	at  time.Duration
	seq uint64
	fn  func()
}

type eventQueue []*event

func (q eventQueue) Len() int { return len(q) }
func (q eventQueue) Less(i, j int) bool {
	if q[i].at != q[j].at {
		return q[i].at < q[j].at
	}
	return q[i].seq < q[j].seq
}
func (q eventQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *eventQueue) Push(x any) { *q = append(*q, x.(*event)) }
func (q *eventQueue) Pop() any {
	old := *q
	n := len(old)
	ev := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return ev
}

// Timeline is a single-threaded event queue ordered by (time, insertion
// order). It also holds the channel registry between named entities.
type Timeline struct {
	clock *timectrl.TimeController

	queue eventQueue
	seq   uint64
	ids   uint64

	receivers map[string]Receiver
	cchannels map[[2]string]ClassicalChannel
	qchannels map[[2]string]QuantumChannel
}

// NewTimeline constructs an empty timeline positioned at Epoch.
func NewTimeline() *Timeline {
	return &Timeline{
		clock:     timectrl.NewTimeController(Epoch),
		receivers: make(map[string]Receiver),
		cchannels: make(map[[2]string]ClassicalChannel),
		qchannels: make(map[[2]string]QuantumChannel),
	}
}

// Clock exposes the underlying controller so callers can attach listeners.
func (tl *Timeline) Clock() *timectrl.TimeController { return tl.clock }

// Now returns the simulated time elapsed since Epoch.
func (tl *Timeline) Now() time.Duration { return tl.clock.Elapsed() }

// Pending reports the number of events not yet executed.
func (tl *Timeline) Pending() int { return len(tl.queue) }

// NextID returns a timeline-unique identifier for protocol instances.
func (tl *Timeline) NextID() string {
	tl.ids++
	return strconv.FormatUint(tl.ids, 10)
}

// Schedule queues fn to run delay after the current time.
func (tl *Timeline) Schedule(delay time.Duration, fn func()) {
	if delay < 0 {
		delay = 0
	}
	tl.seq++
	heap.Push(&tl.queue, &event{at: tl.Now() + delay, seq: tl.seq, fn: fn})
}

// Run executes events until the queue is empty and returns how many ran.
// Events scheduled while running are executed in the same call.
func (tl *Timeline) Run() int {
	executed := 0
	for tl.queue.Len() > 0 {
		ev := heap.Pop(&tl.queue).(*event)
		tl.clock.AdvanceTo(Epoch.Add(ev.at))
		ev.fn()
		executed++
	}
	return executed
}

// Advance moves the clock forward without executing events.
func (tl *Timeline) Advance(d time.Duration) {
	tl.clock.Advance(d)
}

// Register makes r addressable by name for classical messages and photons.
func (tl *Timeline) Register(r Receiver) error {
	if _, exists := tl.receivers[r.Name()]; exists {
		return fmt.Errorf("%w: %q", ErrReceiverExists, r.Name())
	}
	tl.receivers[r.Name()] = r
	return nil
}

// Receiver returns the registered entity with the given name.
func (tl *Timeline) Receiver(name string) (Receiver, bool) {
	r, ok := tl.receivers[name]
	return r, ok
}

// ConnectClassical installs a one-way classical channel from src to dst.
func (tl *Timeline) ConnectClassical(src, dst string, ch ClassicalChannel) {
	tl.cchannels[[2]string{src, dst}] = ch
}

// ConnectQuantum installs a quantum channel from a node to a relay detector.
func (tl *Timeline) ConnectQuantum(node, relay string, ch QuantumChannel) {
	tl.qchannels[[2]string{node, relay}] = ch
}

// ClassicalChannelCount reports how many one-way classical channels exist.
func (tl *Timeline) ClassicalChannelCount() int { return len(tl.cchannels) }

// QuantumChannelCount reports how many quantum channels exist.
func (tl *Timeline) QuantumChannelCount() int { return len(tl.qchannels) }

// Send delivers msg to dst after the classical channel delay.
func (tl *Timeline) Send(src, dst string, msg Message) error {
	ch, ok := tl.cchannels[[2]string{src, dst}]
	if !ok {
		return fmt.Errorf("%w: classical %s -> %s", ErrNoChannel, src, dst)
	}
	r, ok := tl.receivers[dst]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReceiver, dst)
	}
	tl.Schedule(ch.Delay, func() { r.ReceiveMessage(src, msg) })
	return nil
}

// SendPhoton emits p from node towards relay over their quantum channel.
func (tl *Timeline) SendPhoton(node, relay string, p Photon) error {
	ch, ok := tl.qchannels[[2]string{node, relay}]
	if !ok {
		return fmt.Errorf("%w: quantum %s -> %s", ErrNoChannel, node, relay)
	}
	r, ok := tl.receivers[relay]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownReceiver, relay)
	}
	pr, ok := r.(PhotonReceiver)
	if !ok {
		return fmt.Errorf("%w: %q does not accept photons", ErrUnknownReceiver, relay)
	}
	p.Transmissivity = ch.Transmissivity()
	tl.Schedule(ch.Delay(), func() { pr.ReceivePhoton(p) })
	return nil
}
