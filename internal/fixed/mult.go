package fixed

import "fmt"

// Multiplier is the pipelined signed multiply used throughout the phase
// pipeline. It produces the exact product of its operands (no rounding or
// truncation; format interpretation is the caller's job) exactly
// inputDelay+1+outputDelay steps after they are presented. A validity flag
// travels through the identical delay so flag and data arrive together.
type Multiplier struct {
	inputDelay  int
	outputDelay int
	line        *DelayLine[multResult]
}

type multResult struct {
	product int64
	valid   bool
}

// NewMultiplier builds a multiplier with the given alignment delays. Both
// delays must be >= 0.
func NewMultiplier(inputDelay, outputDelay int) (*Multiplier, error) {
	if inputDelay < 0 || outputDelay < 0 {
		return nil, fmt.Errorf("fixed: multiplier delays must be non-negative, got input=%d output=%d", inputDelay, outputDelay)
	}
	return &Multiplier{
		inputDelay:  inputDelay,
		outputDelay: outputDelay,
		line:        NewDelayLine[multResult](inputDelay + 1 + outputDelay),
	}, nil
}

// Latency returns the total step count between input and output.
func (m *Multiplier) Latency() int { return m.inputDelay + 1 + m.outputDelay }

// Step presents one operand pair and returns the product pair that entered
// Latency() steps ago. The operands delayed through the input stages are the
// ones presented on this call, so computing the product at entry and delaying
// it is observably identical to the hardware's staged arrangement.
func (m *Multiplier) Step(a, b int64, valid bool) (int64, bool) {
	out := m.line.Step(multResult{product: a * b, valid: valid})
	return out.product, out.valid
}

// Reset flushes all in-flight products.
func (m *Multiplier) Reset() { m.line.Reset() }
