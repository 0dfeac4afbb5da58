package sweep

import (
	"fmt"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/spibus"
)

type state int

const (
	stateIdle state = iota
	stateWaitForPhase
	stateSendBytes
	// stateLastByteOut waits for the encoder to finish shifting the final
	// element's terminator byte, so the done pulse lands on the same step
	// chip-select returns low.
	stateLastByteOut
)

// Controller is one lane's cycle-stepped sweep state machine. Each global
// time-step the owner calls Present to read the byte currently offered to
// the encoder, runs the encoder tick, and feeds the outcome back through
// Advance.
type Controller struct {
	lane int
	pipe *phase.Pipeline

	st      state
	cmd     beam.Command
	row     int
	col     int
	frame   beam.Frame
	byteIdx int

	busy bool
	done bool // single-step pulse

	// Debug taps and fault accounting.
	lastResult beam.PhaseResult
	faults     int
	lastErr    error
}

// NewController builds the sweep controller for one lane over its phase
// pipeline.
func NewController(lane int, pipe *phase.Pipeline) (*Controller, error) {
	if _, err := beam.LaneColumnBase(lane); err != nil {
		return nil, err
	}
	if pipe == nil {
		return nil, fmt.Errorf("sweep: nil phase pipeline")
	}
	return &Controller{lane: lane, pipe: pipe}, nil
}

// Lane returns the lane index this controller serves.
func (c *Controller) Lane() int { return c.lane }

// Start begins a sweep at element (0,0). A start while a sweep is running
// is ignored; the array controller edge-detects its start line, so repeats
// only occur through operator error.
func (c *Controller) Start(cmd beam.Command) {
	if c.st != stateIdle {
		return
	}
	c.cmd = cmd
	c.row, c.col = 0, 0
	c.busy = true
	c.faults = 0
	c.lastErr = nil
	c.trigger()
}

// Present returns the byte currently offered to the encoder. It is a pure
// view; the byte stays offered until Advance observes its acceptance.
func (c *Controller) Present() spibus.ByteIn {
	if c.st != stateSendBytes {
		return spibus.ByteIn{}
	}
	return spibus.ByteIn{
		Data:  c.frame[c.byteIdx],
		Valid: true,
		Last:  c.byteIdx == beam.FrameBytes-1,
	}
}

// Advance moves the controller one global time-step, given whether the
// encoder accepted the presented byte on this step and whether it finished
// a frame. The phase pipeline always steps, so computation for the next
// element overlaps transmission of the current one.
func (c *Controller) Advance(accepted, frameDone bool) {
	c.done = false

	res, ok, err := c.pipe.Step()

	switch c.st {
	case stateWaitForPhase:
		if !ok {
			return
		}
		if err != nil {
			// Fatal for this element only: no frame goes out, the sweep
			// moves on.
			c.faults++
			c.lastErr = fmt.Errorf("lane %d element row=%d col=%d: %w", c.lane, c.row, c.col, err)
			c.skipElement()
			return
		}
		c.lastResult = res
		c.frame = beam.NewFrame(
			beam.AddressOf(c.row, c.col, c.cmd.Transmit),
			beam.PackValue(res.Index, c.cmd.Transmit),
		)
		c.byteIdx = 0
		c.st = stateSendBytes

	case stateSendBytes:
		if !accepted {
			return
		}
		c.byteIdx++
		if c.byteIdx < beam.FrameBytes {
			return
		}
		if c.lastElement() {
			c.st = stateLastByteOut
			return
		}
		c.nextElement()
		c.trigger()

	case stateLastByteOut:
		if frameDone {
			c.finish()
		}
	}
}

// State returns the externally visible lane status. Done is a single-step
// pulse raised on the step the final frame's chip-select drops.
func (c *Controller) State() beam.LaneState {
	return beam.LaneState{Row: c.row, Column: c.col, Busy: c.busy, Done: c.done}
}

// LastResult is a debug tap of the most recent phase computation.
func (c *Controller) LastResult() beam.PhaseResult { return c.lastResult }

// Faults returns the number of elements skipped due to trig faults in the
// current or most recent sweep, with the last such error.
func (c *Controller) Faults() (int, error) { return c.faults, c.lastErr }

// Reset unconditionally aborts any sweep in progress and discards in-flight
// state.
func (c *Controller) Reset() {
	c.pipe.Reset()
	c.st = stateIdle
	c.row, c.col = 0, 0
	c.byteIdx = 0
	c.busy = false
	c.done = false
}

func (c *Controller) lastElement() bool {
	return c.row == beam.Rows-1 && c.col == beam.LaneColumns-1
}

// nextElement advances in row-major order: the lane-local column wraps 0..3,
// then the row increments.
func (c *Controller) nextElement() {
	c.col++
	if c.col == beam.LaneColumns {
		c.col = 0
		c.row++
	}
}

// trigger starts the phase computation for the current element.
func (c *Controller) trigger() {
	g, err := beam.GeometryOf(c.lane, c.row, c.col, c.cmd.Transmit)
	if err != nil {
		// Unreachable: lane and element indices are range-checked by
		// construction and iteration order.
		panic(err)
	}
	c.pipe.Start(c.cmd, g)
	c.st = stateWaitForPhase
}

// skipElement drops the current element's frame and moves on, ending the
// sweep if it was the last one.
func (c *Controller) skipElement() {
	if c.lastElement() {
		c.finish()
		return
	}
	c.nextElement()
	c.trigger()
}

// finish ends the sweep: done pulses for one step and the controller
// returns to idle.
func (c *Controller) finish() {
	c.st = stateIdle
	c.busy = false
	c.done = true
}
