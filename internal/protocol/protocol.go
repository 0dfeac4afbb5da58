// Package protocol implements the framed message protocol spoken by the
// operator terminal over UDP. Every frame is a 16-byte big-endian header
// followed by the message payload; datagrams may pack several frames
// back to back.
package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// StartCode opens every frame header.
const StartCode uint32 = 0x1077E110

// Message types.
const (
	MsgAck   uint32 = 1
	MsgLines uint32 = 2
)

// HeaderLen is the wire size of a frame header.
const HeaderLen = 16

// MaxLinesLen bounds a lines payload so a frame always fits one datagram.
const MaxLinesLen = 1400

// ErrBadStart is returned when a frame does not begin with the start code.
var ErrBadStart = errors.New("protocol: bad start code")

// Header describes one frame on the wire. Length counts payload bytes
// only.
type Header struct {
	Start    uint32
	Sequence uint32
	Type     uint32
	Length   uint32
}

// Frame is a decoded message: header plus raw payload.
type Frame struct {
	Header  Header
	Payload []byte
}

// Lines returns the frame payload as text, stripping the terminating NUL
// the terminal appends.
func (f Frame) Lines() string {
	p := f.Payload
	if n := len(p); n > 0 && p[n-1] == 0 {
		p = p[:n-1]
	}
	return string(p)
}

// LinesFrame builds a MsgLines frame carrying the text NUL-terminated.
func LinesFrame(sequence uint32, text string) (Frame, error) {
	if len(text) >= MaxLinesLen {
		return Frame{}, fmt.Errorf("protocol: lines payload of %d bytes exceeds %d", len(text), MaxLinesLen)
	}
	payload := append([]byte(text), 0)
	return Frame{
		Header: Header{
			Start:    StartCode,
			Sequence: sequence,
			Type:     MsgLines,
			Length:   uint32(len(payload)),
		},
		Payload: payload,
	}, nil
}

// AckFrame builds the acknowledgement for a received sequence number.
func AckFrame(sequence uint32) Frame {
	return Frame{Header: Header{Start: StartCode, Sequence: sequence, Type: MsgAck}}
}

// Encode serialises the frame for the wire.
func Encode(f Frame) []byte {
	out := make([]byte, HeaderLen+len(f.Payload))
	binary.BigEndian.PutUint32(out[0:], f.Header.Start)
	binary.BigEndian.PutUint32(out[4:], f.Header.Sequence)
	binary.BigEndian.PutUint32(out[8:], f.Header.Type)
	binary.BigEndian.PutUint32(out[12:], f.Header.Length)
	copy(out[HeaderLen:], f.Payload)
	return out
}

// Decode reads one frame from the front of data and reports how many bytes
// it consumed, so callers can walk packed datagrams.
func Decode(data []byte) (Frame, int, error) {
	if len(data) < HeaderLen {
		return Frame{}, 0, fmt.Errorf("protocol: short frame: %d bytes", len(data))
	}
	h := Header{
		Start:    binary.BigEndian.Uint32(data[0:]),
		Sequence: binary.BigEndian.Uint32(data[4:]),
		Type:     binary.BigEndian.Uint32(data[8:]),
		Length:   binary.BigEndian.Uint32(data[12:]),
	}
	if h.Start != StartCode {
		return Frame{}, 0, ErrBadStart
	}
	total := HeaderLen + int(h.Length)
	if h.Length > MaxLinesLen || total > len(data) {
		return Frame{}, 0, fmt.Errorf("protocol: frame length %d exceeds datagram", h.Length)
	}
	payload := make([]byte, h.Length)
	copy(payload, data[HeaderLen:total])
	return Frame{Header: h, Payload: payload}, total, nil
}
