package protocol

import (
	"fmt"
	"sync/atomic"
)

// SendFunc transmits one encoded frame to the peer.
type SendFunc func([]byte) error

// Handler walks packed datagrams, acknowledges every non-ACK frame, and
// dispatches decoded messages. It owns the outbound sequence counter.
type Handler struct {
	send SendFunc
	seq  atomic.Uint32

	// OnLines receives every MsgLines frame.
	OnLines func(head Header, lines string)
	// OnAck receives every acknowledgement, keyed by the acknowledged
	// sequence number.
	OnAck func(sequence uint32)
}

// NewHandler builds a handler sending frames through fn.
func NewHandler(fn SendFunc) *Handler {
	return &Handler{send: fn}
}

// NextSequence returns the next outbound sequence number.
func (h *Handler) NextSequence() uint32 {
	return h.seq.Add(1) - 1
}

// HandleDatagram decodes every frame packed into one received datagram.
// Non-ACK frames are acknowledged before dispatch. Trailing bytes that do
// not form a valid frame end processing with an error.
func (h *Handler) HandleDatagram(data []byte) error {
	for processed := 0; processed < len(data); {
		frame, n, err := Decode(data[processed:])
		if err != nil {
			return fmt.Errorf("protocol: datagram offset %d: %w", processed, err)
		}
		processed += n

		switch frame.Header.Type {
		case MsgAck:
			if h.OnAck != nil {
				h.OnAck(frame.Header.Sequence)
			}
		default:
			if err := h.Send(AckFrame(frame.Header.Sequence)); err != nil {
				return fmt.Errorf("protocol: ack: %w", err)
			}
			if frame.Header.Type == MsgLines && h.OnLines != nil {
				h.OnLines(frame.Header, frame.Lines())
			}
		}
	}
	return nil
}

// Send encodes and transmits one frame.
func (h *Handler) Send(f Frame) error {
	return h.send(Encode(f))
}

// SendLines transmits text as a MsgLines frame and returns the sequence
// number it was assigned, for ACK tracking.
func (h *Handler) SendLines(text string) (uint32, error) {
	seq := h.NextSequence()
	f, err := LinesFrame(seq, text)
	if err != nil {
		return 0, err
	}
	return seq, h.Send(f)
}
