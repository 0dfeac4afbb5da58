package runner

import (
	"fmt"
	"io"
	"sync"

	"go.bug.st/serial"
)

// ScriptWriter is a register writer that performs no hardware access:
// every operation is emitted as a terminal-macro line for a bench console
// attached to the device, matching the devmem scripts used during
// bring-up. Reads have no backing value and return zero after emitting the
// read command.
type ScriptWriter struct {
	mu     sync.Mutex
	out    io.Writer
	closer io.Closer
}

// NewScriptWriter emits script lines to out.
func NewScriptWriter(out io.Writer) *ScriptWriter {
	return &ScriptWriter{out: out}
}

// OpenSerialScript opens the bench console device and emits script lines
// to it.
func OpenSerialScript(device string, baud int) (*ScriptWriter, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: 1,
	}
	port, err := serial.Open(device, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open bench console %s: %w", device, err)
	}
	return &ScriptWriter{out: port, closer: port}, nil
}

func (w *ScriptWriter) emit(format string, args ...interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.out, format, args...); err != nil {
		return err
	}
	_, err := fmt.Fprint(w.out, "mpause 10\n")
	return err
}

// Write32 emits the devmem write for the address.
func (w *ScriptWriter) Write32(addr, value uint32) error {
	return w.emit("sendln \"devmem 0x%08x 32 0x%08x\"\n", addr, value)
}

// Read32 emits the devmem read. The value is not observable from the
// script side, so zero comes back; sequences that poll a register until it
// clears terminate on the first read.
func (w *ScriptWriter) Read32(addr uint32) (uint32, error) {
	if err := w.emit("sendln \"devmem 0x%08x 32\"\n", addr); err != nil {
		return 0, err
	}
	return 0, nil
}

// Close closes the underlying console port, if any.
func (w *ScriptWriter) Close() error {
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
