package core

import (
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeDataRecorder struct {
	deltas map[string]float64
}

func (f *fakeDataRecorder) ObserveData(key string, delta float64) {
	if f.deltas == nil {
		f.deltas = map[string]float64{}
	}
	f.deltas[key] += delta
}

func TestNetworkDataDefaults(t *testing.T) {
	d := NewNetworkData(nil)
	all := d.ReadAll()

	if all[KeyTopology] != "not defined" || all[KeyAttackType] != "none" {
		t.Fatalf("labels = %v / %v", all[KeyTopology], all[KeyAttackType])
	}
	if diff := cmp.Diff([]int{}, all[KeyBlackHoles]); diff != "" {
		t.Fatalf("black holes default (-want +got):\n%s", diff)
	}
	for _, key := range []string{KeyRequests, KeyTotalSuccess, KeySimulationTime, KeyNonExistentRelay} {
		if all[key] != 0.0 {
			t.Fatalf("%s = %v, want 0", key, all[key])
		}
	}
	if !slices.IsSorted(d.Keys()) || len(d.Keys()) != len(all) {
		t.Fatalf("Keys() = %v", d.Keys())
	}
}

func TestNetworkDataForwardsIncrements(t *testing.T) {
	rec := &fakeDataRecorder{}
	d := NewNetworkData(rec)

	d.Increment(KeyRequests, 1)
	d.Increment(KeyRequests, 2)
	d.Increment(KeyTotalFails, 0)
	d.Set(KeyNumberOfNodes, 12)

	if d.Number(KeyRequests) != 3 {
		t.Fatalf("requests = %v, want 3", d.Number(KeyRequests))
	}
	if diff := cmp.Diff(map[string]float64{KeyRequests: 3}, rec.deltas); diff != "" {
		t.Fatalf("recorded deltas (-want +got):\n%s", diff)
	}
}

func TestNetworkDataListsAreCopied(t *testing.T) {
	d := NewNetworkData(nil)
	ids := []int{3, 1}
	d.SetList(KeyBlackHoles, ids)
	ids[0] = 99

	got := d.List(KeyBlackHoles)
	got[1] = 42
	if diff := cmp.Diff([]int{3, 1}, d.List(KeyBlackHoles)); diff != "" {
		t.Fatalf("list aliased caller slices (-want +got):\n%s", diff)
	}

	d.Reset()
	if len(d.List(KeyBlackHoles)) != 0 {
		t.Fatalf("Reset kept black holes %v", d.List(KeyBlackHoles))
	}
}
