// Package config loads and validates sweep definitions.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"

	"github.com/signalsfoundry/repeater-blackhole-sim/core"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/logging"
	"github.com/signalsfoundry/repeater-blackhole-sim/internal/observability"
	"github.com/signalsfoundry/repeater-blackhole-sim/model"
)

// Preset names.
const (
	PresetDefault  = "default"
	PresetTopology = "topology"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid sweep configuration")

var validate = validator.New()

// Sweep describes a parameter sweep: the topologies to build, the attacks
// to apply on each, and how many runs of how many requests to execute.
type Sweep struct {
	Name      string `yaml:"name" validate:"required"`
	Preset    string `yaml:"preset" validate:"omitempty,oneof=default topology"`
	OutputDir string `yaml:"output_dir" validate:"required"`

	Runs    int `yaml:"runs" validate:"gte=1"`
	Workers int `yaml:"workers" validate:"gte=1"`

	RequestsPerRun          int  `yaml:"requests_per_run" validate:"gte=1"`
	AttemptsPerEntanglement int  `yaml:"attempts_per_entanglement" validate:"gte=-1"`
	MaxRequestAttempts      int  `yaml:"max_request_attempts" validate:"gte=1"`
	ForceEntanglement       bool `yaml:"force_entanglement"`

	// Seed makes the sweep reproducible. Without it every run is seeded
	// randomly.
	Seed *uint64 `yaml:"seed"`

	Topologies []Topology `yaml:"topologies" validate:"required,min=1,dive"`
	Attack     Attack     `yaml:"attack"`

	Logging     logging.Config              `yaml:"logging"`
	Tracing     observability.TracingConfig `yaml:"tracing"`
	MetricsAddr string                      `yaml:"metrics_addr"`
}

// Topology is one network shape. Only the fields its kind needs are read:
// grid uses Rows and Columns, line/ring/star use Nodes, erdos-renyi uses
// Nodes and Probability, barabasi-albert uses Nodes and M.
type Topology struct {
	Kind        string  `yaml:"kind" validate:"required"`
	Rows        int     `yaml:"rows" validate:"gte=0"`
	Columns     int     `yaml:"columns" validate:"gte=0"`
	Nodes       int     `yaml:"nodes" validate:"gte=0"`
	Probability float64 `yaml:"probability" validate:"gte=0,lte=1"`
	M           int     `yaml:"m" validate:"gte=0"`
	// Param is the sweep parameter this entry was derived from, recorded
	// in the output keys.
	Param float64 `yaml:"param"`
}

// Attack lists the black-hole attacks applied to every topology. An empty
// BlackHoles list runs the baseline only.
type Attack struct {
	TargetsPerBlackHole []int     `yaml:"targets_per_black_hole" validate:"dive,gte=0"`
	BlackHoles          []int     `yaml:"black_holes" validate:"dive,gte=1"`
	Intensities         []float64 `yaml:"intensities" validate:"dive,gte=0,lte=1"`
	BaseSwapProbability float64   `yaml:"base_swap_probability" validate:"gte=0,lte=1"`
}

// GridShapes maps node counts of the topology preset to grid dimensions.
var GridShapes = map[int][2]int{
	12: {3, 4},
	24: {4, 6},
	36: {6, 6},
	48: {6, 8},
	60: {6, 10},
	72: {8, 9},
	84: {7, 12},
	96: {8, 12},
}

func defaultIntensities() []float64 {
	out := make([]float64, 0, 7)
	for i := 1; i <= 7; i++ {
		out = append(out, float64(i)/10)
	}
	return out
}

// Default returns the default preset: a 3x4 grid with a baseline and every
// combination of targets {0,1}, black holes {1,3,5} and intensities
// 0.1..0.7.
func Default() Sweep {
	return Sweep{
		Name:                    "default_simulation",
		Preset:                  PresetDefault,
		OutputDir:               "data/default_simulation",
		Runs:                    10,
		Workers:                 3,
		RequestsPerRun:          100,
		AttemptsPerEntanglement: 8,
		MaxRequestAttempts:      2,
		Topologies:              []Topology{{Kind: string(model.TopologyGrid), Rows: 3, Columns: 4}},
		Attack: Attack{
			TargetsPerBlackHole: []int{0, 1},
			BlackHoles:          []int{1, 3, 5},
			Intensities:         defaultIntensities(),
			BaseSwapProbability: core.DefaultPhysicalParams().SwapProbability,
		},
		Logging: logging.Config{Level: "info", Format: "text"},
	}
}

// TopologyPreset returns the topology preset: grid, barabasi-albert and
// erdos-renyi networks of 12 to 96 nodes. Random topologies are swept over
// the parameters {0.1, 0.3, 0.5}; barabasi-albert attaches int(10*param)
// edges per node.
func TopologyPreset() Sweep {
	s := Default()
	s.Name = "topology_simulation"
	s.Preset = PresetTopology
	s.OutputDir = "data/topology_simulation"
	s.Runs = 1000
	s.AttemptsPerEntanglement = 2
	s.Attack.BlackHoles = []int{1, 3, 5}
	s.Attack.Intensities = []float64{0.3}
	s.Topologies = nil
	for n := 12; n <= 96; n += 12 {
		shape := GridShapes[n]
		s.Topologies = append(s.Topologies, Topology{Kind: string(model.TopologyGrid), Rows: shape[0], Columns: shape[1], Nodes: n})
		for _, param := range []float64{0.1, 0.3, 0.5} {
			s.Topologies = append(s.Topologies,
				Topology{Kind: string(model.TopologyBarabasiAlbert), Nodes: n, M: int(param * 10), Param: param},
				Topology{Kind: string(model.TopologyErdosRenyi), Nodes: n, Probability: param, Param: param},
			)
		}
	}
	return s
}

// ForPreset returns the named preset.
func ForPreset(name string) (Sweep, error) {
	switch name {
	case "", PresetDefault:
		return Default(), nil
	case PresetTopology:
		return TopologyPreset(), nil
	default:
		return Sweep{}, fmt.Errorf("%w: unknown preset %q", ErrInvalidConfig, name)
	}
}

// Load reads a YAML sweep file. Fields the file leaves out keep the values
// of its preset (default when none is named).
func Load(path string) (Sweep, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Sweep{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes and validates a YAML sweep document.
func Parse(raw []byte) (Sweep, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(raw, &head); err != nil {
		return Sweep{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg, err := ForPreset(head.Preset)
	if err != nil {
		return Sweep{}, err
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Sweep{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return Sweep{}, err
	}
	return cfg, nil
}

// Validate checks struct tags and the constraints that depend on the
// topology kind.
func (s Sweep) Validate() error {
	if err := validate.Struct(s); err != nil {
		return formatValidationError(err)
	}
	for i, t := range s.Topologies {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("%w: topologies[%d]: %v", ErrInvalidConfig, i, err)
		}
	}
	if len(s.Attack.BlackHoles) > 0 && (len(s.Attack.Intensities) == 0 || len(s.Attack.TargetsPerBlackHole) == 0) {
		return fmt.Errorf("%w: attack needs intensities and targets_per_black_hole alongside black_holes", ErrInvalidConfig)
	}
	return nil
}

// Validate checks that the fields required by the topology kind are set.
func (t Topology) Validate() error {
	kind, err := model.ParseTopology(t.Kind)
	if err != nil {
		return err
	}
	switch kind {
	case model.TopologyGrid:
		if t.Rows < 1 || t.Columns < 1 {
			return errors.New("grid needs rows and columns")
		}
	case model.TopologyBarabasiAlbert:
		if t.M < 1 || t.M >= t.Nodes {
			return fmt.Errorf("barabasi-albert needs 1 <= m < nodes, got m=%d nodes=%d", t.M, t.Nodes)
		}
	case model.TopologyRing:
		if t.Nodes < 3 {
			return errors.New("ring needs at least 3 nodes")
		}
	default:
		if t.Nodes < 1 {
			return fmt.Errorf("%s needs nodes", kind)
		}
	}
	return nil
}

// TopologyKind returns the parsed topology kind. It assumes Validate passed.
func (t Topology) TopologyKind() model.Topology {
	kind, _ := model.ParseTopology(t.Kind)
	return kind
}

// Params returns the positional parameters for core.TopologyBuilder.SelectTopology.
func (t Topology) Params() []any {
	switch t.TopologyKind() {
	case model.TopologyGrid:
		return []any{t.Rows, t.Columns}
	case model.TopologyErdosRenyi:
		return []any{t.Nodes, t.Probability}
	case model.TopologyBarabasiAlbert:
		return []any{t.Nodes, t.M}
	default:
		return []any{t.Nodes}
	}
}

// NodeCount returns the number of nodes the topology builds.
func (t Topology) NodeCount() int {
	if t.TopologyKind() == model.TopologyGrid {
		return t.Rows * t.Columns
	}
	return t.Nodes
}

// PhysicalParams returns the default physical parameters with the sweep's
// base swap probability applied.
func (s Sweep) PhysicalParams() core.PhysicalParams {
	p := core.DefaultPhysicalParams()
	p.SwapProbability = s.Attack.BaseSwapProbability
	return p
}

// RequestOptions returns the per-request retry bounds.
func (s Sweep) RequestOptions() core.RequestOptions {
	return core.RequestOptions{
		MaxRequestAttempts:         s.MaxRequestAttempts,
		ForceEntanglement:          s.ForceEntanglement,
		MaxAttemptsPerEntanglement: s.AttemptsPerEntanglement,
	}
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%w: %s is required", ErrInvalidConfig, field)
		case "gte", "min":
			return fmt.Errorf("%w: %s must be at least %s", ErrInvalidConfig, field, e.Param())
		case "lte", "max":
			return fmt.Errorf("%w: %s must not exceed %s", ErrInvalidConfig, field, e.Param())
		default:
			return fmt.Errorf("%w: %s failed %s", ErrInvalidConfig, field, e.Tag())
		}
	}
	return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
}
