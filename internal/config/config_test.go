package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

func TestDefaultPresetIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, []int{0, 1}, cfg.Attack.TargetsPerBlackHole)
	assert.Equal(t, []int{1, 3, 5}, cfg.Attack.BlackHoles)
	assert.Len(t, cfg.Attack.Intensities, 7)
	assert.InDelta(t, 0.7, cfg.Attack.Intensities[6], 1e-9)
	assert.Equal(t, 0.8, cfg.PhysicalParams().SwapProbability)
	assert.Equal(t, []any{3, 4}, cfg.Topologies[0].Params())
	assert.Equal(t, 12, cfg.Topologies[0].NodeCount())
}

func TestTopologyPreset(t *testing.T) {
	cfg := TopologyPreset()
	require.NoError(t, cfg.Validate())

	// 8 node counts, one grid plus three BA and three ER each.
	assert.Len(t, cfg.Topologies, 8*7)
	for _, topo := range cfg.Topologies {
		assert.Equal(t, topo.Nodes, topo.NodeCount(), "%+v", topo)
		if topo.TopologyKind() == model.TopologyBarabasiAlbert {
			assert.Equal(t, int(topo.Param*10), topo.M)
		}
	}
}

func TestParseOverridesPreset(t *testing.T) {
	raw := []byte(`
name: small
output_dir: out
runs: 4
workers: 2
seed: 11
topologies:
  - kind: line
    nodes: 5
  - kind: er
    nodes: 10
    probability: 0.4
attack:
  black_holes: [2]
  intensities: [0.5]
`)
	cfg, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "small", cfg.Name)
	assert.Equal(t, 4, cfg.Runs)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, uint64(11), *cfg.Seed)
	assert.Equal(t, []any{5}, cfg.Topologies[0].Params())
	assert.Equal(t, []any{10, 0.4}, cfg.Topologies[1].Params())
	assert.Equal(t, []int{0, 1}, cfg.Attack.TargetsPerBlackHole, "unset fields keep the preset value")
	assert.Equal(t, 100, cfg.RequestsPerRun)
}

func TestParseRejectsInvalidSweeps(t *testing.T) {
	cases := map[string]string{
		"unknown preset": "preset: nope\n",
		"zero runs":      "runs: 0\n",
		"missing name":   "name: \"\"\n",
		"grid shape":     "topologies:\n  - kind: grid\n    rows: 3\n",
		"ba m":           "topologies:\n  - kind: ba\n    nodes: 4\n    m: 4\n",
		"unknown kind":   "topologies:\n  - kind: torus\n    nodes: 4\n",
		"intensity":      "attack:\n  intensities: [1.5]\n",
		"probability":    "topologies:\n  - kind: er\n    nodes: 4\n    probability: 2\n",
		"not yaml":       "runs: [\n",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("preset: topology\nruns: 3\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "topology_simulation", cfg.Name)
	assert.Equal(t, 3, cfg.Runs)

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
