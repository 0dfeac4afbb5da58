package array

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/spibus"
	"github.com/vk-instruments/spibeam/internal/trig"
)

// wireDecoder recovers bytes from one lane's bus lines the way a mode 0
// peripheral would: data sampled on rising clock edges while selected.
type wireDecoder struct {
	prevClock bool
	bits      int
	cur       byte
	bytes     []byte
}

func (d *wireDecoder) sample(s spibus.Sample) {
	rising := s.Clock && !d.prevClock
	d.prevClock = s.Clock
	if !s.Select || !rising {
		return
	}
	d.cur <<= 1
	if s.Data {
		d.cur |= 1
	}
	if d.bits++; d.bits == 8 {
		d.bytes = append(d.bytes, d.cur)
		d.bits = 0
		d.cur = 0
	}
}

func (d *wireDecoder) frames(t *testing.T) []beam.Frame {
	t.Helper()
	require.Zero(t, d.bits, "partial byte on the wire")
	require.Zero(t, len(d.bytes)%beam.FrameBytes, "wire bytes do not divide into frames")
	frames := make([]beam.Frame, len(d.bytes)/beam.FrameBytes)
	for i := range frames {
		copy(frames[i][:], d.bytes[i*beam.FrameBytes:])
	}
	return frames
}

func testConfig(divider int) Config {
	return Config{Bus: spibus.Config{Divider: divider}}
}

func newArray(t *testing.T, divider int, tp trig.Provider) *Controller {
	t.Helper()
	a, err := New(testConfig(divider), tp)
	require.NoError(t, err)
	return a
}

func allIdle(states [beam.Lanes]beam.LaneState) bool {
	for _, s := range states {
		if s.Busy {
			return false
		}
	}
	return true
}

// runArraySweep pulses start for one step and drives the array until every
// lane is idle, returning the decoded per-lane wire traffic and the step
// count of each lane's done pulse.
func runArraySweep(t *testing.T, a *Controller, cmd beam.Command) ([beam.Lanes][]beam.Frame, [beam.Lanes][]int) {
	t.Helper()
	var dec [beam.Lanes]wireDecoder
	var donePulses [beam.Lanes][]int

	started := false
	for tick := 0; tick < 500000; tick++ {
		res := a.Step(tick == 0, cmd)
		for lane := range res {
			dec[lane].sample(res[lane].Bus)
			if res[lane].State.Done {
				donePulses[lane] = append(donePulses[lane], tick)
			}
		}
		if !started {
			started = !allIdle(a.States())
			require.True(t, started, "start pulse did not begin a sweep")
			continue
		}
		if allIdle(a.States()) {
			var frames [beam.Lanes][]beam.Frame
			for lane := range dec {
				frames[lane] = dec[lane].frames(t)
			}
			return frames, donePulses
		}
	}
	t.Fatal("array sweep never finished")
	return [beam.Lanes][]beam.Frame{}, donePulses
}

func TestArrayMatchesSweepFrames(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(2)
	require.NoError(t, err)
	cases := []struct {
		name string
		cmd  beam.Command
	}{
		{"steered transmit", beam.Command{
			Azimuth:   fixed.DegreesFromFloat(22.5),
			Elevation: fixed.DegreesFromFloat(-6.0),
			Transmit:  true,
		}},
		{"steered receive", beam.Command{
			Azimuth:   fixed.DegreesFromFloat(-15.0),
			Elevation: fixed.DegreesFromFloat(4.25),
		}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			a := newArray(t, 2, table)
			got, dones := runArraySweep(t, a, tc.cmd)

			want, err := SweepFrames(tc.cmd, table)
			require.NoError(t, err)
			for lane := 0; lane < beam.Lanes; lane++ {
				require.Len(t, got[lane], beam.LaneElements, "lane %d", lane)
				if diff := cmp.Diff(want[lane], got[lane]); diff != "" {
					t.Errorf("lane %d wire traffic mismatch (-want +got):\n%s", lane, diff)
				}
				assert.Len(t, dones[lane], 1, "lane %d done pulse count", lane)
			}
			assert.Equal(t, tc.cmd, a.Command())
		})
	}
}

func TestArrayWireTiming(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	a := newArray(t, 4, table)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(45.0), Transmit: true}

	var samples []spibus.Sample
	for tick := 0; tick < 500000; tick++ {
		res := a.Step(tick == 0, cmd)
		samples = append(samples, res[0].Bus)
		if tick > 0 && allIdle(a.States()) {
			break
		}
	}

	// Rising edges while selected are the peripheral's sample points: 40 per
	// frame, spaced one full clock period (2*divider ticks) apart. Chip-select
	// only drops between frames, so edge spacing restarts at each gap.
	const period = 2 * 4
	edges := 0
	lastEdge := -1
	prevClock := false
	for i, s := range samples {
		rising := s.Clock && !prevClock
		prevClock = s.Clock
		if !s.Select {
			lastEdge = -1
			continue
		}
		if !rising {
			continue
		}
		edges++
		if lastEdge >= 0 {
			require.Equal(t, period, i-lastEdge, "clock period at tick %d", i)
		}
		lastEdge = i
	}
	assert.Equal(t, beam.LaneElements*8*beam.FrameBytes, edges)
}

func TestArrayLanesRunInLockstep(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	a := newArray(t, 4, table)

	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(10.0), Transmit: true}
	_, dones := runArraySweep(t, a, cmd)

	// Every lane walks the same element schedule against its own bus, so
	// with identical per-lane timing the done pulses coincide.
	require.Len(t, dones[0], 1)
	for lane := 1; lane < beam.Lanes; lane++ {
		require.Len(t, dones[lane], 1, "lane %d", lane)
		assert.Equal(t, dones[0][0], dones[lane][0], "lane %d done step", lane)
	}
}

func TestArrayStartIsEdgeTriggered(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	a := newArray(t, 2, table)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(7.0)}

	// Hold start high for the whole sweep: exactly one sweep runs.
	sweepEnded := -1
	for tick := 0; tick < 500000; tick++ {
		a.Step(true, cmd)
		if tick > 0 && allIdle(a.States()) {
			sweepEnded = tick
			break
		}
	}
	require.Greater(t, sweepEnded, 0, "sweep never finished")

	// Still held high: no retrigger.
	for i := 0; i < 1000; i++ {
		a.Step(true, cmd)
		require.True(t, allIdle(a.States()), "held-high start retriggered a sweep")
	}

	// Release and raise again: a fresh edge starts a new sweep.
	a.Step(false, cmd)
	a.Step(true, cmd)
	assert.False(t, allIdle(a.States()))
}

func TestArrayResetRearmsStart(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	a := newArray(t, 2, table)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(-3.0), Transmit: true}

	a.Step(true, cmd)
	for i := 0; i < 500; i++ {
		a.Step(true, cmd)
	}
	require.False(t, allIdle(a.States()))

	a.Reset()
	for _, s := range a.States() {
		assert.False(t, s.Busy)
		assert.False(t, s.Done)
		assert.Zero(t, s.Row)
		assert.Zero(t, s.Column)
	}

	// Reset also clears the edge detector, so a start line still held
	// high fires again on the next step.
	a.Step(true, cmd)
	assert.False(t, allIdle(a.States()))
}

func TestArrayConfigValidation(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(0)
	require.NoError(t, err)

	_, err = New(Config{Bus: spibus.Config{Divider: 1}}, table)
	assert.Error(t, err)
	_, err = New(Config{Bus: spibus.Config{Divider: 2, ClockIdleHigh: true}}, table)
	assert.Error(t, err)
	_, err = New(testConfig(2), nil)
	assert.Error(t, err)

	a, err := New(testConfig(2), table)
	require.NoError(t, err)
	_, err = a.Lane(beam.Lanes)
	assert.Error(t, err)
	lane, err := a.Lane(0)
	require.NoError(t, err)
	assert.NotNil(t, lane.Sweep)
	assert.NotNil(t, lane.Encoder)
}
