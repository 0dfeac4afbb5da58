package regs

import (
	"sync"
)

// Access records one register operation against the mock space.
type Access struct {
	Write bool
	Addr  uint32
	Value uint32
}

// Mock is an in-memory register space. It records every access so tests
// can assert on exact device programming sequences, and optional hooks let
// a test or dev-mode harness emulate hardware side effects such as a FIFO
// draining after execute.
type Mock struct {
	mu    sync.Mutex
	regs  map[uint32]uint32
	trace []Access

	// OnWrite, when set, runs after each write with the whole register
	// space available for mutation.
	OnWrite func(space map[uint32]uint32, addr, value uint32)
	// OnRead, when set, may override the value returned for an address.
	OnRead func(space map[uint32]uint32, addr uint32, value uint32) uint32
}

// NewMock returns an empty register space. Unwritten registers read zero.
func NewMock() *Mock {
	return &Mock{regs: make(map[uint32]uint32)}
}

func (m *Mock) Write32(addr, value uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[addr] = value
	m.trace = append(m.trace, Access{Write: true, Addr: addr, Value: value})
	if m.OnWrite != nil {
		m.OnWrite(m.regs, addr, value)
	}
	return nil
}

func (m *Mock) Read32(addr uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := m.regs[addr]
	if m.OnRead != nil {
		v = m.OnRead(m.regs, addr, v)
	}
	m.trace = append(m.trace, Access{Addr: addr, Value: v})
	return v, nil
}

// Peek returns the stored value without recording an access.
func (m *Mock) Peek(addr uint32) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[addr]
}

// Trace returns a copy of the access log.
func (m *Mock) Trace() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Access, len(m.trace))
	copy(out, m.trace)
	return out
}

// Writes returns only the write accesses, in order.
func (m *Mock) Writes() []Access {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Access
	for _, a := range m.trace {
		if a.Write {
			out = append(out, a)
		}
	}
	return out
}

// ResetTrace clears the access log but keeps register contents.
func (m *Mock) ResetTrace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = nil
}
