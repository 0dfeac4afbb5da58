package fixed

// PhaseCodeBits is the width W of the phase code consumed by the
// trigonometric primitive: codes cover [0, 2^16) for one full rotation.
const PhaseCodeBits = 16

// KDegToCode is the degree-to-code scale constant 2^(W-1)/180 in Q8.8.
// The exact value 46603.377... is rounded up: with 46604 the conversion of
// 360° lands on exactly 2^16 and wraps to 0, and 180° lands on exactly
// 2^15, preserving the periodicity the downstream trig primitive assumes.
const KDegToCode = 46604

// PhaseCode converts an unsigned Q9.7 angle in degrees to a 16-bit phase
// code. The Q9.7 x Q8.8 product is Q17.15; the 15 fractional bits (8+7) are
// shifted out with truncation and the result is reduced to the low 16 bits.
// Angles beyond 360° simply wrap: the code is the angle modulo one turn.
func PhaseCode(deg Degrees) uint16 {
	prod := uint64(deg) * KDegToCode // Q17.15
	return uint16(prod >> 15)        // truncate, keep low W bits
}

// DegreeConverter is the cycle-stepped form of PhaseCode, built on a
// Multiplier so its latency is inputDelay+1+outputDelay like every other
// arithmetic stage.
type DegreeConverter struct {
	mult *Multiplier
}

// NewDegreeConverter builds a converter with the given multiplier delays.
func NewDegreeConverter(inputDelay, outputDelay int) (*DegreeConverter, error) {
	m, err := NewMultiplier(inputDelay, outputDelay)
	if err != nil {
		return nil, err
	}
	return &DegreeConverter{mult: m}, nil
}

// Latency returns the step count between input and output.
func (c *DegreeConverter) Latency() int { return c.mult.Latency() }

// Step presents one angle and returns the phase code that entered Latency()
// steps ago together with its validity flag.
func (c *DegreeConverter) Step(deg Degrees, valid bool) (uint16, bool) {
	p, ok := c.mult.Step(int64(deg), KDegToCode, valid)
	return uint16(uint64(p) >> 15), ok
}

// Reset flushes in-flight conversions.
func (c *DegreeConverter) Reset() { c.mult.Reset() }
