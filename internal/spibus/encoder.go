// Package spibus bit-bangs byte streams onto a 3-wire serial bus: clock,
// data (MSB first) and chip-select. Chip-select frames whole multi-byte
// transactions: it asserts with the first byte and only de-asserts after
// the terminator byte's last bit. The encoder honours ready/not-ready
// backpressure on its byte input and is driven by a single reference tick.
package spibus

import "fmt"

// Config sets the bus timing. Only the idle-low clock with data stable
// before the sampling edge is supported; requesting any other polarity or
// phase is a configuration error detected at construction, never a silently
// approximated mode.
type Config struct {
	// Divider sets the clock rate to tick-rate/(2*Divider). Must be >= 2.
	Divider int
	// ClockIdleHigh requests an idle-high clock. Unsupported.
	ClockIdleHigh bool
	// SampleOnSecondEdge requests data capture on the trailing clock edge.
	// Unsupported.
	SampleOnSecondEdge bool
}

// ConfigError reports an unsupported bus configuration.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spibus: unsupported configuration: %s", e.Reason)
}

// ByteIn is the byte-stream input presented to the encoder on each tick.
// Last marks the terminator byte of a frame.
type ByteIn struct {
	Data  byte
	Valid bool
	Last  bool
}

// Sample is the state of the three bus lines during one reference tick.
type Sample struct {
	Clock  bool
	Data   bool
	Select bool
}

// Result reports one tick of encoder activity. Accepted pulses on the tick
// the presented byte is latched; FrameDone pulses on the tick chip-select
// returns low after a terminator byte completes.
type Result struct {
	Sample    Sample
	Accepted  bool
	FrameDone bool
}

type encoderState int

const (
	stateIdle encoderState = iota
	stateShift
	stateLoad
)

// Encoder is the cycle-stepped bit-serial encoder. One Tick call advances
// one reference tick.
type Encoder struct {
	div int

	state    encoderState
	shift    byte
	last     bool
	bit      int // 0..7 within the byte
	tick     int // 0..2*div-1 within the bit
	dataHold bool
	donePend bool
}

// NewEncoder validates the configuration and returns an idle encoder.
func NewEncoder(cfg Config) (*Encoder, error) {
	if cfg.Divider < 2 {
		return nil, &ConfigError{Reason: fmt.Sprintf("divider %d below minimum 2", cfg.Divider)}
	}
	if cfg.ClockIdleHigh {
		return nil, &ConfigError{Reason: "idle-high clock not supported"}
	}
	if cfg.SampleOnSecondEdge {
		return nil, &ConfigError{Reason: "trailing-edge sampling not supported"}
	}
	return &Encoder{div: cfg.Divider}, nil
}

// Ready reports whether a presented byte would be accepted on the next
// Tick.
func (e *Encoder) Ready() bool {
	return (e.state == stateIdle && !e.donePend) || e.state == stateLoad
}

// Tick advances the encoder one reference tick with the given byte input.
// The input may be held across ticks; it is consumed only on a tick whose
// Result.Accepted is true.
func (e *Encoder) Tick(in ByteIn) Result {
	var res Result

	switch e.state {
	case stateIdle:
		if e.donePend {
			// Dedicated gap tick: chip-select must observably de-assert
			// between frames, so no byte is accepted here.
			res.FrameDone = true
			e.donePend = false
			return res
		}
		if in.Valid {
			e.latch(in)
			res.Accepted = true
			res.Sample = e.shiftSample()
			e.advanceBit()
			return res
		}
		// All lines idle between frames.
		return res

	case stateLoad:
		if in.Valid {
			e.latch(in)
			res.Accepted = true
			res.Sample = e.shiftSample()
			e.advanceBit()
			return res
		}
		// Clock paused low, chip-select held, data holding its last level.
		res.Sample = Sample{Select: true, Data: e.dataHold}
		return res

	case stateShift:
		res.Sample = e.shiftSample()
		e.advanceBit()
		return res
	}
	return res
}

// latch loads a new byte and begins its first bit.
func (e *Encoder) latch(in ByteIn) {
	e.shift = in.Data
	e.last = in.Last
	e.bit = 0
	e.tick = 0
	e.state = stateShift
}

// shiftSample returns the line levels for the current tick of the current
// bit: data stable for the whole bit period, clock low for the first half
// and high for the second, so the data is settled before the rising
// (sampling) edge.
func (e *Encoder) shiftSample() Sample {
	bitVal := e.shift&(0x80>>e.bit) != 0
	e.dataHold = bitVal
	return Sample{
		Clock:  e.tick >= e.div,
		Data:   bitVal,
		Select: true,
	}
}

// advanceBit moves the intra-bit tick counter and, at bit boundaries, the
// byte/frame state.
func (e *Encoder) advanceBit() {
	e.tick++
	if e.tick < 2*e.div {
		return
	}
	e.tick = 0
	e.bit++
	if e.bit < 8 {
		return
	}
	// Byte complete.
	if e.last {
		e.state = stateIdle
		e.donePend = true
		return
	}
	e.state = stateLoad
}

// Reset unconditionally returns the encoder to idle with all lines low.
func (e *Encoder) Reset() {
	e.state = stateIdle
	e.bit = 0
	e.tick = 0
	e.last = false
	e.donePend = false
	e.dataHold = false
}
