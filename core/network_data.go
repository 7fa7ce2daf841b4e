package core

import (
	"maps"
	"slices"
)

// Keys of the metrics record.
const (
	KeyRequests                  = "requests"
	KeyConsumedEPRs              = "consumed_eprs"
	KeyTotalRouteFidelity        = "total_route_fidelity"
	KeyTotalSuccess              = "total_success"
	KeyTotalFails                = "total_fails"
	KeyTotalNoPaths              = "total_no_paths"
	KeyTotalRouteLength          = "total_route_length"
	KeyTotalRequestAttempts      = "total_request_attempts"
	KeyNumberOfNodes             = "number_of_nodes"
	KeyTotalEntanglementAttempts = "total_entanglement_attempts"
	KeyEntanglementSuccess       = "entanglement_success"
	KeyEntanglementFails         = "entanglement_fails"
	KeySwappingSuccess           = "swapping_success"
	KeySwappingFails             = "swapping_fails"
	KeyNoEntanglement            = "total_no_entanglement"
	KeyNonExistentRelay          = "total_non_existent_relay"
	KeySimulationTime            = "simulation_time"
	KeyTopology                  = "topology"
	KeyBlackHoles                = "black_holes"
	KeyTargetsPerBlackHole       = "targets_per_black_hole"
	KeyAttackType                = "attack_type"
	KeyAttackSwapProbability     = "attack_swap_probability"
	KeyAttackIntensity           = "attack_intensity"
)

// DataRecorder observes counter increments. It lets an external metrics
// backend mirror the record without the record knowing about it.
type DataRecorder interface {
	ObserveData(key string, delta float64)
}

// NetworkData is the flat metrics record of one network: numeric counters,
// string labels and id lists. It is mutated during orchestration and read
// wholesale at the end of a run.
type NetworkData struct {
	numbers  map[string]float64
	labels   map[string]string
	lists    map[string][]int
	recorder DataRecorder
}

// NewNetworkData returns a record with every counter at zero.
func NewNetworkData(recorder DataRecorder) *NetworkData {
	d := &NetworkData{recorder: recorder}
	d.Reset()
	return d
}

// Reset restores the initial record.
func (d *NetworkData) Reset() {
	d.numbers = map[string]float64{
		KeyRequests:                  0,
		KeyConsumedEPRs:              0,
		KeyTotalRouteFidelity:        0,
		KeyTotalSuccess:              0,
		KeyTotalFails:                0,
		KeyTotalNoPaths:              0,
		KeyTotalRouteLength:          0,
		KeyTotalRequestAttempts:      0,
		KeyNumberOfNodes:             0,
		KeyTotalEntanglementAttempts: 0,
		KeyEntanglementSuccess:       0,
		KeyEntanglementFails:         0,
		KeySwappingSuccess:           0,
		KeySwappingFails:             0,
		KeyNoEntanglement:            0,
		KeyNonExistentRelay:          0,
		KeySimulationTime:            0,
		KeyTargetsPerBlackHole:       0,
	}
	d.labels = map[string]string{
		KeyTopology:   "not defined",
		KeyAttackType: "none",
	}
	d.lists = map[string][]int{
		KeyBlackHoles: {},
	}
}

// Increment adds by to a numeric key, creating it when absent.
func (d *NetworkData) Increment(key string, by float64) {
	d.numbers[key] += by
	if d.recorder != nil && by != 0 {
		d.recorder.ObserveData(key, by)
	}
}

// Set overwrites a numeric key.
func (d *NetworkData) Set(key string, value float64) { d.numbers[key] = value }

// SetLabel overwrites a string key.
func (d *NetworkData) SetLabel(key, value string) { d.labels[key] = value }

// SetList overwrites a list key with a copy of ids.
func (d *NetworkData) SetList(key string, ids []int) { d.lists[key] = slices.Clone(ids) }

// Number returns a numeric key.
func (d *NetworkData) Number(key string) float64 { return d.numbers[key] }

// Label returns a string key.
func (d *NetworkData) Label(key string) string { return d.labels[key] }

// List returns a copy of a list key.
func (d *NetworkData) List(key string) []int { return slices.Clone(d.lists[key]) }

// ReadAll returns a snapshot of every key. Numeric values are float64,
// labels string and lists []int.
func (d *NetworkData) ReadAll() map[string]any {
	out := make(map[string]any, len(d.numbers)+len(d.labels)+len(d.lists))
	for k, v := range d.numbers {
		out[k] = v
	}
	for k, v := range d.labels {
		out[k] = v
	}
	for k, v := range d.lists {
		out[k] = slices.Clone(v)
	}
	return out
}

// Keys returns every key in ascending order.
func (d *NetworkData) Keys() []string {
	keys := slices.Collect(maps.Keys(d.numbers))
	keys = append(keys, slices.Collect(maps.Keys(d.labels))...)
	keys = append(keys, slices.Collect(maps.Keys(d.lists))...)
	slices.Sort(keys)
	return keys
}

func (d *NetworkData) clear() {
	clear(d.numbers)
	clear(d.labels)
	clear(d.lists)
}
