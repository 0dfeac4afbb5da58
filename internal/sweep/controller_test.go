package sweep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk-instruments/spibeam/internal/beam"
	"github.com/vk-instruments/spibeam/internal/fixed"
	"github.com/vk-instruments/spibeam/internal/phase"
	"github.com/vk-instruments/spibeam/internal/spibus"
	"github.com/vk-instruments/spibeam/internal/trig"
)

func newHarness(t *testing.T, lane, divider int, tp trig.Provider) (*Controller, *spibus.Encoder) {
	t.Helper()
	pipe, err := phase.NewPipeline(phase.Config{}, tp)
	require.NoError(t, err)
	ctrl, err := NewController(lane, pipe)
	require.NoError(t, err)
	enc, err := spibus.NewEncoder(spibus.Config{Divider: divider})
	require.NoError(t, err)
	return ctrl, enc
}

// runSweep drives one controller/encoder pair tick by tick until the done
// pulse, collecting every byte the encoder accepts. It verifies the pulse
// is a single step and that the lane is quiet afterwards.
func runSweep(t *testing.T, ctrl *Controller, enc *spibus.Encoder, cmd beam.Command) []beam.Frame {
	t.Helper()
	ctrl.Start(cmd)
	require.True(t, ctrl.State().Busy)

	var raw []byte
	doneAt := -1
	for tick := 0; tick < 400000; tick++ {
		in := ctrl.Present()
		res := enc.Tick(in)
		ctrl.Advance(res.Accepted, res.FrameDone)
		if res.Accepted {
			raw = append(raw, in.Data)
		}
		if ctrl.State().Done {
			require.Equal(t, -1, doneAt, "done pulsed more than once")
			doneAt = tick
		}
		if doneAt >= 0 && tick > doneAt+100 {
			break
		}
	}
	require.GreaterOrEqual(t, doneAt, 0, "sweep never finished")
	require.False(t, ctrl.State().Busy)

	require.Zero(t, len(raw)%beam.FrameBytes, "accepted bytes do not divide into frames")
	frames := make([]beam.Frame, len(raw)/beam.FrameBytes)
	for i := range frames {
		copy(frames[i][:], raw[i*beam.FrameBytes:])
	}
	return frames
}

func TestControllerMatchesLaneFrames(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(2)
	require.NoError(t, err)

	cases := []struct {
		name string
		lane int
		cmd  beam.Command
	}{
		{"lane0 transmit", 0, beam.Command{
			Azimuth:   fixed.DegreesFromFloat(17.25),
			Elevation: fixed.DegreesFromFloat(-4.5),
			Transmit:  true,
		}},
		{"lane5 receive", 5, beam.Command{
			Azimuth:   fixed.DegreesFromFloat(-30.0),
			Elevation: fixed.DegreesFromFloat(12.0),
		}},
		{"lane7 boresight", 7, beam.Command{Transmit: true}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ctrl, enc := newHarness(t, tc.lane, 2, table)
			got := runSweep(t, ctrl, enc, tc.cmd)

			want, err := LaneFrames(tc.cmd, tc.lane, table)
			require.NoError(t, err)
			require.Len(t, got, beam.LaneElements)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("emitted frames mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestControllerDoneOnSelectDrop(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	ctrl, enc := newHarness(t, 3, 4, table)

	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(5.0), Transmit: true}
	ctrl.Start(cmd)

	prevSelect := false
	for tick := 0; tick < 400000; tick++ {
		res := enc.Tick(ctrl.Present())
		ctrl.Advance(res.Accepted, res.FrameDone)
		if ctrl.State().Done {
			// The pulse lands on the step the final frame closes: the
			// encoder reports frame completion and chip-select has just
			// dropped.
			assert.True(t, res.FrameDone)
			assert.False(t, res.Sample.Select)
			assert.True(t, prevSelect, "chip-select was not high on the preceding step")
			return
		}
		prevSelect = res.Sample.Select
	}
	t.Fatal("sweep never finished")
}

func TestControllerBackpressureInvariant(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(3)
	require.NoError(t, err)
	cmd := beam.Command{
		Azimuth:   fixed.DegreesFromFloat(-12.5),
		Elevation: fixed.DegreesFromFloat(8.75),
	}

	ctrlFast, encFast := newHarness(t, 2, 2, table)
	fast := runSweep(t, ctrlFast, encFast, cmd)

	// A slower bus divider stretches every byte; the accepted sequence
	// must not change.
	ctrlSlow, encSlow := newHarness(t, 2, 9, table)
	slow := runSweep(t, ctrlSlow, encSlow, cmd)

	if diff := cmp.Diff(fast, slow); diff != "" {
		t.Errorf("frame sequence depends on bus timing (-fast +slow):\n%s", diff)
	}
}

func TestControllerSkipsFaultedElements(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(2)
	require.NoError(t, err)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(20.0), Transmit: true}

	// The azimuth phase code is shared by every element, so faulting it
	// skips the whole sweep while the controller still has to walk all
	// 128 elements and finish cleanly.
	faulty := &trig.FaultProvider{
		Inner:      table,
		FaultCodes: map[uint16]bool{fixed.PhaseCode(cmd.Azimuth): true},
	}
	ctrl, enc := newHarness(t, 0, 2, faulty)
	frames := runSweep(t, ctrl, enc, cmd)

	assert.Empty(t, frames)
	n, lastErr := ctrl.Faults()
	assert.Equal(t, beam.LaneElements, n)
	require.Error(t, lastErr)
	assert.ErrorIs(t, lastErr, phase.ErrTrigFault)
	assert.Contains(t, lastErr.Error(), "row=31 col=3")
}

func TestControllerStartIgnoredWhileBusy(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(2)
	require.NoError(t, err)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(9.0), Transmit: true}

	ctrl, enc := newHarness(t, 4, 2, table)
	ctrl.Start(cmd)

	var raw []byte
	doneAt := -1
	for tick := 0; tick < 400000 && doneAt < 0; tick++ {
		if tick == 500 {
			// Mid-sweep restart attempt with a different command must be
			// a no-op.
			ctrl.Start(beam.Command{Azimuth: fixed.DegreesFromFloat(-45.0)})
		}
		in := ctrl.Present()
		res := enc.Tick(in)
		ctrl.Advance(res.Accepted, res.FrameDone)
		if res.Accepted {
			raw = append(raw, in.Data)
		}
		if ctrl.State().Done {
			doneAt = tick
		}
	}
	require.GreaterOrEqual(t, doneAt, 0)
	require.Len(t, raw, beam.LaneElements*beam.FrameBytes)

	want, err := LaneFrames(cmd, 4, table)
	require.NoError(t, err)
	for i, f := range want {
		assert.Equal(t, f[:], raw[i*beam.FrameBytes:(i+1)*beam.FrameBytes], "frame %d", i)
	}
}

func TestControllerReset(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(2)
	require.NoError(t, err)
	cmd := beam.Command{Azimuth: fixed.DegreesFromFloat(3.5)}

	ctrl, enc := newHarness(t, 6, 2, table)
	ctrl.Start(cmd)
	for tick := 0; tick < 777; tick++ {
		res := enc.Tick(ctrl.Present())
		ctrl.Advance(res.Accepted, res.FrameDone)
	}
	require.True(t, ctrl.State().Busy)

	ctrl.Reset()
	enc.Reset()
	st := ctrl.State()
	assert.False(t, st.Busy)
	assert.False(t, st.Done)
	assert.Zero(t, st.Row)
	assert.Zero(t, st.Column)

	// The lane is fully reusable after a reset.
	got := runSweep(t, ctrl, enc, cmd)
	want, err := LaneFrames(cmd, 6, table)
	require.NoError(t, err)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("post-reset frames mismatch (-want +got):\n%s", diff)
	}
}

func TestNewControllerRejectsBadInputs(t *testing.T) {
	t.Parallel()
	table, err := trig.NewTable(1)
	require.NoError(t, err)
	pipe, err := phase.NewPipeline(phase.Config{}, table)
	require.NoError(t, err)

	_, err = NewController(8, pipe)
	assert.Error(t, err)
	_, err = NewController(-1, pipe)
	assert.Error(t, err)
	_, err = NewController(0, nil)
	assert.Error(t, err)
}
