package kernel

import (
	"math"
	"time"
)

// fibreLightSpeed is the propagation speed in optical fibre (m/s).
const fibreLightSpeed = 2e8

// ClassicalChannel carries protocol messages with a fixed delay.
type ClassicalChannel struct {
	Distance float64 // metres
	Delay    time.Duration
}

// QuantumChannel carries photons from a repeater node to a relay detector.
type QuantumChannel struct {
	Distance    float64 // metres
	Attenuation float64 // dB per metre
}

// Transmissivity is the probability that a photon survives the channel.
func (qc QuantumChannel) Transmissivity() float64 {
	return math.Pow(10, -qc.Attenuation*qc.Distance/10)
}

// Delay is the propagation time over the channel.
func (qc QuantumChannel) Delay() time.Duration {
	return time.Duration(qc.Distance / fibreLightSpeed * float64(time.Second))
}
