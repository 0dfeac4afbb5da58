package fixed

// DelayLine is a fixed-depth pass-through buffer: a value entering on one
// Step call emerges exactly depth calls later. Depth 0 is a wire. It exists
// to re-synchronise parallel signal paths that traverse unequal numbers of
// pipeline stages; until depth values have entered, Step returns the zero
// value of T.
type DelayLine[T any] struct {
	buf  []T
	head int
}

// NewDelayLine returns a delay line of the given depth. Depth must be >= 0;
// negative depths panic since they indicate a wiring bug, not runtime input.
func NewDelayLine[T any](depth int) *DelayLine[T] {
	if depth < 0 {
		panic("fixed: negative delay line depth")
	}
	return &DelayLine[T]{buf: make([]T, depth)}
}

// Depth returns the configured delay in steps.
func (d *DelayLine[T]) Depth() int { return len(d.buf) }

// Step inserts v and returns the value inserted Depth() steps earlier.
func (d *DelayLine[T]) Step(v T) T {
	if len(d.buf) == 0 {
		return v
	}
	out := d.buf[d.head]
	d.buf[d.head] = v
	d.head++
	if d.head == len(d.buf) {
		d.head = 0
	}
	return out
}

// Reset clears the buffer contents without changing the depth.
func (d *DelayLine[T]) Reset() {
	var zero T
	for i := range d.buf {
		d.buf[i] = zero
	}
	d.head = 0
}
