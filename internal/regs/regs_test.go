package regs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockReadBackAndTrace(t *testing.T) {
	t.Parallel()
	m := NewMock()
	require.NoError(t, m.Write32(0x43C00018, 0x5))
	require.NoError(t, m.Write32(0x43C0001C, 0x1))

	v, err := m.Read32(0x43C00018)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x5), v)

	v, err = m.Read32(0x1000)
	require.NoError(t, err)
	assert.Zero(t, v, "unwritten registers read zero")

	writes := m.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, Access{Write: true, Addr: 0x43C00018, Value: 0x5}, writes[0])
	assert.Equal(t, Access{Write: true, Addr: 0x43C0001C, Value: 0x1}, writes[1])
	assert.Len(t, m.Trace(), 4)

	m.ResetTrace()
	assert.Empty(t, m.Trace())
	assert.Equal(t, uint32(0x5), m.Peek(0x43C00018), "reset keeps contents")
}

func TestMockHooks(t *testing.T) {
	t.Parallel()
	m := NewMock()

	// Emulate a send-mask register the hardware clears once execute is
	// written.
	const maskAddr, execAddr = 0x43C00014, 0x43C0001C
	m.OnWrite = func(space map[uint32]uint32, addr, value uint32) {
		if addr == execAddr && value == 1 {
			space[maskAddr] = 0
		}
	}
	require.NoError(t, m.Write32(maskAddr, 0xFF))
	require.NoError(t, m.Write32(execAddr, 0x1))
	v, err := m.Read32(maskAddr)
	require.NoError(t, err)
	assert.Zero(t, v)

	m.OnRead = func(space map[uint32]uint32, addr uint32, value uint32) uint32 {
		if addr == 0x43C4000C {
			return 0x280
		}
		return value
	}
	v, err = m.Read32(0x43C4000C)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x280), v)
}
