package trig

import "github.com/vk-instruments/spibeam/internal/fixed"

// FaultProvider wraps another Provider and raises the fault flag for a
// chosen set of phase codes. It exists so the fault path of the phase
// pipeline can be exercised without pathological hardware.
type FaultProvider struct {
	Inner Provider
	// FaultCodes marks the codes that raise the fault flag.
	FaultCodes map[uint16]bool
}

// SinCos delegates to the inner provider and overrides the fault flag for
// configured codes.
func (f *FaultProvider) SinCos(code uint16) (sin, cos fixed.Sample, fault bool) {
	sin, cos, fault = f.Inner.SinCos(code)
	if f.FaultCodes[code] {
		fault = true
	}
	return sin, cos, fault
}

// Latency reports the inner provider's latency.
func (f *FaultProvider) Latency() int { return f.Inner.Latency() }
