// Package kb holds the registry of repeater nodes and relay nodes of one
// network, together with the normal / black-hole classification.
package kb

import (
	"errors"
	"fmt"
	"slices"
	"sync"
)

var (
	ErrNodeExists   = errors.New("node already exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrRelayExists  = errors.New("relay already exists")
)

// Role is the classification of a repeater node.
type Role int

const (
	RoleNormal Role = iota
	RoleBlackHole
)

func (r Role) String() string {
	if r == RoleBlackHole {
		return "black-hole"
	}
	return "normal"
}

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	EventNodeAdded EventType = iota
	EventRelayAdded
	EventRoleChanged
	EventCleared
)

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type   EventType
	NodeID int
	Role   Role
	Relay  [2]int
}

// RelayKey is the unordered pair of node ids a relay connects, stored with
// the smaller id first.
func RelayKey(a, b int) [2]int {
	if a > b {
		a, b = b, a
	}
	return [2]int{a, b}
}

// KnowledgeBase is an in-memory, thread-safe store for the nodes (N) and
// relays (R) of a network. Every node has exactly one role, so the normal
// and black-hole sets always partition the node set.
type KnowledgeBase[N, R any] struct {
	mu sync.RWMutex

	nodes  map[int]N
	roles  map[int]Role
	relays map[[2]int]R

	subs   map[int]func(Event)
	nextID int
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase[N, R any]() *KnowledgeBase[N, R] {
	return &KnowledgeBase[N, R]{
		nodes:  make(map[int]N),
		roles:  make(map[int]Role),
		relays: make(map[[2]int]R),
		subs:   make(map[int]func(Event)),
	}
}

// AddNode registers a normal node. It returns an error if the ID already exists.
func (kb *KnowledgeBase[N, R]) AddNode(id int, n N) error {
	kb.mu.Lock()
	if _, exists := kb.nodes[id]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNodeExists, id)
	}
	kb.nodes[id] = n
	kb.roles[id] = RoleNormal
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	publish(subs, Event{Type: EventNodeAdded, NodeID: id, Role: RoleNormal})
	return nil
}

// AddRelay registers the relay between nodes a and b. Both nodes must exist
// and at most one relay may exist per unordered pair.
func (kb *KnowledgeBase[N, R]) AddRelay(a, b int, r R) error {
	key := RelayKey(a, b)

	kb.mu.Lock()
	for _, id := range key {
		if _, ok := kb.nodes[id]; !ok {
			kb.mu.Unlock()
			return fmt.Errorf("%w: %d referenced by relay %v", ErrNodeNotFound, id, key)
		}
	}
	if _, exists := kb.relays[key]; exists {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRelayExists, key)
	}
	kb.relays[key] = r
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	publish(subs, Event{Type: EventRelayAdded, Relay: key})
	return nil
}

// Node returns the node with the given ID.
func (kb *KnowledgeBase[N, R]) Node(id int) (N, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	n, ok := kb.nodes[id]
	return n, ok
}

// Relay returns the relay between a and b in either order.
func (kb *KnowledgeBase[N, R]) Relay(a, b int) (R, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	r, ok := kb.relays[RelayKey(a, b)]
	return r, ok
}

// Role returns the classification of node id.
func (kb *KnowledgeBase[N, R]) Role(id int) (Role, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	r, ok := kb.roles[id]
	return r, ok
}

// NodeIDs returns all node IDs in ascending order.
func (kb *KnowledgeBase[N, R]) NodeIDs() []int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	ids := make([]int, 0, len(kb.nodes))
	for id := range kb.nodes {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// NormalIDs returns the IDs of normal nodes in ascending order.
func (kb *KnowledgeBase[N, R]) NormalIDs() []int { return kb.idsWithRole(RoleNormal) }

// BlackHoleIDs returns the IDs of black-hole nodes in ascending order.
func (kb *KnowledgeBase[N, R]) BlackHoleIDs() []int { return kb.idsWithRole(RoleBlackHole) }

func (kb *KnowledgeBase[N, R]) idsWithRole(role Role) []int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	var ids []int
	for id, r := range kb.roles {
		if r == role {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// RelayKeys returns every relay key sorted lexicographically.
func (kb *KnowledgeBase[N, R]) RelayKeys() [][2]int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	keys := make([][2]int, 0, len(kb.relays))
	for k := range kb.relays {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(x, y [2]int) int {
		if x[0] != y[0] {
			return x[0] - y[0]
		}
		return x[1] - y[1]
	})
	return keys
}

// NumNodes returns the number of registered nodes.
func (kb *KnowledgeBase[N, R]) NumNodes() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.nodes)
}

// NumRelays returns the number of registered relays.
func (kb *KnowledgeBase[N, R]) NumRelays() int {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return len(kb.relays)
}

// SetRole reclassifies node id and notifies subscribers when the role
// actually changes.
func (kb *KnowledgeBase[N, R]) SetRole(id int, role Role) error {
	kb.mu.Lock()
	current, ok := kb.roles[id]
	if !ok {
		kb.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrNodeNotFound, id)
	}
	if current == role {
		kb.mu.Unlock()
		return nil
	}
	kb.roles[id] = role
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	publish(subs, Event{Type: EventRoleChanged, NodeID: id, Role: role})
	return nil
}

// Clear drops every node and relay.
func (kb *KnowledgeBase[N, R]) Clear() {
	kb.mu.Lock()
	clear(kb.nodes)
	clear(kb.roles)
	clear(kb.relays)
	subs := kb.snapshotSubs()
	kb.mu.Unlock()

	publish(subs, Event{Type: EventCleared})
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase[N, R]) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	id := kb.nextID
	kb.nextID++
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}

// snapshotSubs must be called with the lock held; callbacks run after the
// lock is released so they may call back into the KB.
func (kb *KnowledgeBase[N, R]) snapshotSubs() []func(Event) {
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	subs := make([]func(Event), 0, len(ids))
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	return subs
}

func publish(subs []func(Event), ev Event) {
	for _, sub := range subs {
		sub(ev)
	}
}
