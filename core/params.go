package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned for physical parameters outside their domain.
var ErrInvalidConfig = errors.New("invalid configuration")

// PhysicalParams are the constants a network is built with.
type PhysicalParams struct {
	// MemoryFidelity is the fidelity of freshly generated pairs.
	MemoryFidelity float64
	// BSMEfficiency is the detector efficiency of every relay node.
	BSMEfficiency float64
	// QuantumAttenuation is the fibre loss in dB per metre.
	QuantumAttenuation float64
	// QuantumDistance is the length in metres of each node-to-relay fibre.
	QuantumDistance float64
	ClassicalDistance float64
	ClassicalDelay    time.Duration
	// SwapProbability is the base swapping probability of every node.
	SwapProbability float64
	// SwapDegradation scales the fidelity of a successful swap.
	SwapDegradation float64
	// EntanglementIncrement is added to the clock after each failed
	// generation round.
	EntanglementIncrement time.Duration
	// SwapIncrement is added to the clock after each swap and each forced
	// entanglement.
	SwapIncrement time.Duration
	// ForcedFidelity is written into both memories by forced entanglement.
	ForcedFidelity float64
}

// DefaultPhysicalParams returns the parameters used when none are given.
func DefaultPhysicalParams() PhysicalParams {
	return PhysicalParams{
		MemoryFidelity:        0.9,
		BSMEfficiency:         1,
		QuantumAttenuation:    0,
		QuantumDistance:       1000,
		ClassicalDistance:     1000,
		ClassicalDelay:        time.Millisecond,
		SwapProbability:       0.8,
		SwapDegradation:       0.99,
		EntanglementIncrement: time.Millisecond,
		SwapIncrement:         time.Millisecond,
		ForcedFidelity:        1,
	}
}

// Validate checks that every probability lies in [0,1] and no length or
// duration is negative.
func (p PhysicalParams) Validate() error {
	probs := map[string]float64{
		"memory fidelity":  p.MemoryFidelity,
		"bsm efficiency":   p.BSMEfficiency,
		"swap probability": p.SwapProbability,
		"swap degradation": p.SwapDegradation,
		"forced fidelity":  p.ForcedFidelity,
	}
	for name, v := range probs {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s %v outside [0,1]", ErrInvalidConfig, name, v)
		}
	}
	if p.QuantumAttenuation < 0 || p.QuantumDistance < 0 || p.ClassicalDistance < 0 {
		return fmt.Errorf("%w: negative channel length or attenuation", ErrInvalidConfig)
	}
	if p.ClassicalDelay < 0 || p.EntanglementIncrement < 0 || p.SwapIncrement < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}
