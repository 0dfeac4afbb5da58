// Package phase computes the quantised steering phase for one element:
// turns = Kturn * cos(el) * (x*cos(az) - y*sin(az)), carried out entirely in
// chained fixed-point formats with explicit truncation points.
//
// Two forms are exposed behind the same data contract: Calculate, a pure
// function with no timing model, and Pipeline, a cycle-stepped simulator
// that reproduces the hardware's per-stage alignment delays when bit-exact
// latency bookkeeping matters.
package phase

import (
	"errors"
	"fmt"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// Kturn encodes -frequency/speed-of-light in turns per millimetre as a
// signed Q0.17 constant, one per panel. The operating wavelength is twice
// the element pitch (half-wavelength spacing), so Kturn = -1/(2*pitch):
// -0.1/mm transmit, -1/15 mm receive.
const (
	KTurnTx = -13107 // round(-2^17 / 10)
	KTurnRx = -8738  // round(-2^17 / 15)
)

// ErrTrigFault reports a fault flag raised by the trigonometric primitive.
// It is fatal for the element whose phase was being computed; there is no
// retry at this layer.
var ErrTrigFault = errors.New("phase: trig primitive fault")

// Calculate runs the whole pipeline as a pure function. It accepts every
// input: angles and offsets beyond their nominal ranges wrap at their
// format boundaries, which is defined periodic behaviour. The only error is
// a trig primitive fault.
func Calculate(cmd beam.Command, g beam.Geometry, tp trig.Provider) (beam.PhaseResult, error) {
	// Stage 1: Q9.7 degrees to 16-bit phase codes.
	azCode := fixed.PhaseCode(cmd.Azimuth)
	elCode := fixed.PhaseCode(cmd.Elevation)

	// Stage 2: sin/cos lookups, Q1.15.
	sinAz, cosAz, fault := tp.SinCos(azCode)
	if fault {
		return beam.PhaseResult{}, fmt.Errorf("%w: azimuth code %#04x", ErrTrigFault, azCode)
	}
	_, cosEl, fault := tp.SinCos(elCode)
	if fault {
		return beam.PhaseResult{}, fmt.Errorf("%w: elevation code %#04x", ErrTrigFault, elCode)
	}

	// Stage 4: x*cos(az) and y*sin(az); Q9.7 x Q1.15 = Q10.22, then
	// truncate 8 fractional bits down to Q10.14.
	xc := (int32(g.XOffset) * int32(cosAz)) >> 8
	ys := (int32(g.YOffset) * int32(sinAz)) >> 8

	// Stage 5: projected in-plane distance, Q10.14.
	tPre := xc - ys

	// Stage 6: scale by cos(el); Q10.14 x Q1.15 = Q11.29, truncate 15 bits
	// to Q11.14.
	tEl := (int64(tPre) * int64(cosEl)) >> 15

	// Stage 7: Q11.14 x Q0.17 = Q11.31; the low 32 bits taken unshifted are
	// the signed Q1.31 fractional turn. Bits above wrap away: phase beyond
	// ±1 turn is periodic, not an error.
	k := int64(KTurnRx)
	if cmd.Transmit {
		k = int64(KTurnTx)
	}
	turns := fixed.Turns(int32(uint32(uint64(tEl * k))))

	return beam.PhaseResult{Turns: turns, Index: Index(turns)}, nil
}

// Index quantises a Q1.31 fractional turn onto the 64-step (5.625°) command
// grid: bits [30:25] plus bit [24] as round-half-up. The 6-bit sum wraps at
// 64, folding the rounded top step back onto 0 exactly as the modular phase
// does.
func Index(t fixed.Turns) uint8 {
	raw := uint32(t)
	return uint8(((raw >> 25) + (raw >> 24 & 1)) & 0x3F)
}
