// Package array replicates the per-lane sweep controller and serial
// encoder across the aperture's 8 lanes, broadcasting one beam command and
// start trigger to all of them and exposing per-lane status. Lanes share no
// mutable state: each owns a disjoint 128-element column group and its own
// bus.
package array

import (
	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/spibus"
	"github.com/vk-instruments/spibeam/internal/sweep"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// Config assembles the per-lane component configurations.
type Config struct {
	Phase phase.Config
	Bus   spibus.Config
}

// Lane bundles one lane's sweep controller and encoder.
type Lane struct {
	Sweep   *sweep.Controller
	Encoder *spibus.Encoder
}

// TickResult reports one lane's bus lines and status for one reference
// tick.
type TickResult struct {
	Bus   spibus.Sample
	State beam.LaneState
}

// Controller drives all 8 lanes in lock-step on a single global time-step.
type Controller struct {
	lanes     [beam.Lanes]Lane
	provider  trig.Provider
	cmd       beam.Command
	prevStart bool
}

// New builds the array controller: one phase pipeline, sweep controller and
// encoder per lane. Configuration errors (unsupported bus mode, bad
// divider) surface here and are fatal.
func New(cfg Config, provider trig.Provider) (*Controller, error) {
	a := &Controller{provider: provider}
	for i := 0; i < beam.Lanes; i++ {
		pipe, err := phase.NewPipeline(cfg.Phase, provider)
		if err != nil {
			return nil, err
		}
		sc, err := sweep.NewController(i, pipe)
		if err != nil {
			return nil, err
		}
		enc, err := spibus.NewEncoder(cfg.Bus)
		if err != nil {
			return nil, err
		}
		a.lanes[i] = Lane{Sweep: sc, Encoder: enc}
	}
	return a, nil
}

// Command returns the beam command broadcast on the most recent start.
func (a *Controller) Command() beam.Command { return a.cmd }

// Lane gives access to one lane's components for debug taps.
func (a *Controller) Lane(i int) (Lane, error) {
	if _, err := beam.LaneColumnBase(i); err != nil {
		return Lane{}, err
	}
	return a.lanes[i], nil
}

// Step advances every lane one global time-step. The start line is
// edge-detected: holding it high triggers exactly one sweep, and the
// command is latched and broadcast to all lanes on that edge. The returned
// array carries each lane's bus sample and status for this step.
func (a *Controller) Step(start bool, cmd beam.Command) [beam.Lanes]TickResult {
	if start && !a.prevStart {
		a.cmd = cmd
		for i := range a.lanes {
			a.lanes[i].Sweep.Start(cmd)
		}
	}
	a.prevStart = start

	var out [beam.Lanes]TickResult
	for i := range a.lanes {
		lane := &a.lanes[i]
		res := lane.Encoder.Tick(lane.Sweep.Present())
		lane.Sweep.Advance(res.Accepted, res.FrameDone)
		out[i] = TickResult{Bus: res.Sample, State: lane.Sweep.State()}
	}
	return out
}

// States returns the current per-lane status without advancing time. The
// array deliberately does not fold these into one "sweep complete" signal;
// aggregation is the external driver's concern.
func (a *Controller) States() [beam.Lanes]beam.LaneState {
	var out [beam.Lanes]beam.LaneState
	for i := range a.lanes {
		out[i] = a.lanes[i].Sweep.State()
	}
	return out
}

// Reset unconditionally returns every lane to idle, discarding all
// in-flight state. The start edge detector is also cleared, so a held-high
// start line fires again after the reset.
func (a *Controller) Reset() {
	for i := range a.lanes {
		a.lanes[i].Sweep.Reset()
		a.lanes[i].Encoder.Reset()
	}
	a.prevStart = false
}

// SweepFrames is the pure end-to-end transform: the ordered command frame
// sequence every lane emits for one beam command, with no timing model.
// Lane i of the result owns global columns (7-i)*4 .. (7-i)*4+3.
func SweepFrames(cmd beam.Command, provider trig.Provider) ([beam.Lanes][]beam.Frame, error) {
	var out [beam.Lanes][]beam.Frame
	for lane := 0; lane < beam.Lanes; lane++ {
		frames, err := sweep.LaneFrames(cmd, lane, provider)
		if err != nil {
			return out, err
		}
		out[lane] = frames
	}
	return out, nil
}
