// Package fixed implements the fixed-point arithmetic primitives used by the
// beam-steering pipeline: Q-format value types, an exact pipelined multiplier,
// a synchronising delay line, and the degree-to-phase-code converter.
//
// Q-format convention: Qm.n stores an integer V representing V/2^n, with m
// integer bits (including the sign bit for signed formats). Every operation
// states its result format and whether it truncates or rounds; there is no
// implicit format promotion anywhere in the pipeline.
package fixed

import "math"

// Degrees is an unsigned Q9.7 angle in degrees. Values at or beyond 360° are
// legal and represent more than one turn; periodicity is handled downstream
// by the phase-code conversion.
type Degrees uint16

// Millimetres is a signed Q9.7 length in millimetres.
type Millimetres int16

// Sample is a signed Q1.15 trigonometric sample in [-1, 1).
type Sample int16

// Turns is a signed Q1.31 fraction of a rotation. Arithmetic on Turns wraps
// at ±1 turn; the wrap is the intended periodic semantics, not overflow.
type Turns int32

// FracBits is the fractional width of the Q9.7 degree and millimetre formats.
const FracBits = 7

// SampleFracBits is the fractional width of the Q1.15 sample format.
const SampleFracBits = 15

// TurnFracBits is the fractional width of the Q1.31 turn format.
const TurnFracBits = 31

// DegreesFromFloat converts a floating-point angle to Q9.7, rounding to the
// nearest step and wrapping at the 16-bit boundary (512° of range).
func DegreesFromFloat(deg float64) Degrees {
	return Degrees(int64(math.Round(deg * (1 << FracBits))))
}

// Float returns the angle in degrees.
func (d Degrees) Float() float64 { return float64(d) / (1 << FracBits) }

// MillimetresFromFloat converts a floating-point length to Q9.7, rounding to
// the nearest step.
func MillimetresFromFloat(mm float64) Millimetres {
	return Millimetres(int64(math.Round(mm * (1 << FracBits))))
}

// Float returns the length in millimetres.
func (m Millimetres) Float() float64 { return float64(m) / (1 << FracBits) }

// Float returns the Q1.15 sample as a fraction in [-1, 1).
func (s Sample) Float() float64 { return float64(s) / (1 << SampleFracBits) }

// Float returns the phase as a fraction of a turn in [-1, 1).
func (t Turns) Float() float64 { return float64(t) / (1 << TurnFracBits) }
