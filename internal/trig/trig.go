// Package trig provides the trigonometric primitive consumed by the phase
// pipeline: a 16-bit phase code in, a signed Q1.15 sine/cosine pair out,
// with a fixed compile-time latency and an optional fault flag.
//
// The hardware unit is external to the pipeline; this package carries its
// contract (Provider) plus a table-backed reference implementation. The
// reference rounds to nearest, which matches the observed endpoint values
// but has not been verified bit-for-bit against the hardware's low bits on
// arbitrary codes.
package trig

import (
	"fmt"
	"math"

	"github.com/vk-instruments/spibeam/internal/fixed"
)

// Provider is the consumed contract of the trigonometric primitive. SinCos
// is combinational; Latency reports the fixed step count a cycle-stepped
// pipeline must model between presenting a code and using the result. A
// raised fault flag is fatal for the element whose phase is being computed.
type Provider interface {
	SinCos(code uint16) (sin, cos fixed.Sample, fault bool)
	Latency() int
}

// Table is the reference Provider: a full-turn sine table of 2^16 Q1.15
// entries built once at construction by mirroring a quarter wave. The
// positive unity peak saturates at the Q1.15 maximum 0x7FFF since +1.0 is
// not representable.
type Table struct {
	latency int
	sin     []fixed.Sample
}

// NewTable builds the reference provider with the given fixed latency.
func NewTable(latency int) (*Table, error) {
	if latency < 0 {
		return nil, fmt.Errorf("trig: latency must be non-negative, got %d", latency)
	}
	const full = 1 << fixed.PhaseCodeBits
	t := &Table{latency: latency, sin: make([]fixed.Sample, full)}
	// Build one quarter wave and mirror it so the table is symmetric by
	// construction. The positive unity peak saturates at 0x7FFF; the
	// negative peak keeps the exact -1.0 encoding -0x8000.
	for code := 0; code <= full/4; code++ {
		raw := int32(math.Round(math.Sin(2*math.Pi*float64(code)/full) * (1 << fixed.SampleFracBits)))
		pos := raw
		if pos > math.MaxInt16 {
			pos = math.MaxInt16
		}
		t.sin[code] = fixed.Sample(pos)
		t.sin[(full/2-code)%full] = fixed.Sample(pos)
		t.sin[(full/2+code)%full] = fixed.Sample(-raw)
		t.sin[(full-code)%full] = fixed.Sample(-raw)
	}
	return t, nil
}

// quarterTurn is the phase-code offset between sine and cosine.
const quarterTurn = 1 << (fixed.PhaseCodeBits - 2)

// SinCos returns the sine and cosine of the phase code. The table never
// faults.
func (t *Table) SinCos(code uint16) (sin, cos fixed.Sample, fault bool) {
	return t.sin[code], t.sin[code+quarterTurn], false
}

// Latency returns the fixed step latency of the primitive.
func (t *Table) Latency() int { return t.latency }
