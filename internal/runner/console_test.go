package runner

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk-instruments/spibeam/internal/beamlog"
	"github.com/vk-instruments/spibeam/internal/regs"
	"github.com/vk-instruments/spibeam/internal/spiwrite"
	"github.com/vk-instruments/spibeam/internal/trig"
)

func newTestExecutor(t *testing.T) (*spiwrite.Executor, *regs.Mock) {
	t.Helper()
	m := regs.NewMock()
	table, err := trig.NewTable(0)
	require.NoError(t, err)
	return spiwrite.NewExecutor(m, table, nil, 2), m
}

func runConsole(t *testing.T, input string) string {
	t.Helper()
	exec, _ := newTestExecutor(t)
	var out bytes.Buffer
	c := NewConsole(exec, nil, strings.NewReader(input), &out)
	require.NoError(t, c.Run(context.Background()))
	return out.String()
}

func TestConsoleRegisterCommands(t *testing.T) {
	t.Parallel()
	out := runConsole(t, "write 0x43C00018 0x5\nread 0x43C00018\nquit\n")
	assert.Contains(t, out, "0x43c00018 <= 0x00000005")
	assert.Contains(t, out, "00000005\r\n")
	assert.True(t, strings.HasPrefix(out, Prompt))
}

func TestConsoleUnknownCommand(t *testing.T) {
	t.Parallel()
	out := runConsole(t, "flarb\nexit\n")
	assert.Contains(t, out, "what?")
}

func TestConsoleElementMap(t *testing.T) {
	t.Parallel()
	out := runConsole(t, "map 0 tx\nquit\n")
	// Lane 0 owns global columns 28..31.
	assert.Contains(t, out, "lane 0 columns 28..31 (tx)")
	assert.Contains(t, out, "COL 28")
	assert.Contains(t, out, "COL 31")
	// Row 0, even lane-local column, transmit: chip 0x10, channel 0x27.
	assert.Contains(t, out, "10:27")

	out = runConsole(t, "map 9 tx\nquit\n")
	assert.Contains(t, out, "Error")
	out = runConsole(t, "map 0 sideways\nquit\n")
	assert.Contains(t, out, "not tx or rx")
}

func TestConsoleSweepsListsRecordedRuns(t *testing.T) {
	t.Parallel()
	db, err := beamlog.New(filepath.Join(t.TempDir(), "sweeps.db"))
	require.NoError(t, err)
	defer db.Close()

	// The device clears the send mask once all buses finish.
	m := regs.NewMock()
	m.OnWrite = func(space map[uint32]uint32, addr, value uint32) {
		if addr == spiwrite.SendMaskAddr && value != 0 {
			space[addr] = 0
		}
	}
	table, err := trig.NewTable(0)
	require.NoError(t, err)
	exec := spiwrite.NewExecutor(m, table, db, 2)

	var out bytes.Buffer
	c := NewConsole(exec, db, strings.NewReader("beam 20.0 5.0 tx\nsweeps\nquit\n"), &out)
	require.NoError(t, c.Run(context.Background()))

	assert.Contains(t, out.String(), "beam 20.0 5.0 tx sent")
	assert.Contains(t, out.String(), "20.00")
	assert.Contains(t, out.String(), "5.00")
	assert.Contains(t, out.String(), "1024")
}

func TestConsoleSweepsWithoutLog(t *testing.T) {
	t.Parallel()
	out := runConsole(t, "sweeps\nquit\n")
	assert.Contains(t, out, "no sweep log attached")
}

func TestConsoleQuitStopsReading(t *testing.T) {
	t.Parallel()
	exec, m := newTestExecutor(t)
	var out bytes.Buffer
	c := NewConsole(exec, nil, strings.NewReader("quit\nwrite 0x10 0x1\n"), &out)
	require.NoError(t, c.Run(context.Background()))
	assert.Zero(t, m.Peek(0x10), "commands after quit must not run")
}
