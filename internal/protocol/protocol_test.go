package protocol

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()
	f, err := LinesFrame(7, "beam 10 5 tx")
	require.NoError(t, err)

	wire := Encode(f)
	require.Len(t, wire, HeaderLen+13)
	assert.Equal(t, []byte{0x10, 0x77, 0xE1, 0x10}, wire[:4])

	got, n, err := Decode(wire)
	require.NoError(t, err)
	assert.Equal(t, len(wire), n)
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "beam 10 5 tx", got.Lines())
}

func TestDecodeRejections(t *testing.T) {
	t.Parallel()
	_, _, err := Decode(make([]byte, HeaderLen-1))
	assert.Error(t, err)

	wire := Encode(AckFrame(1))
	wire[0] = 0xAA
	_, _, err = Decode(wire)
	assert.ErrorIs(t, err, ErrBadStart)

	f, err := LinesFrame(0, "hello")
	require.NoError(t, err)
	wire = Encode(f)
	_, _, err = Decode(wire[:len(wire)-2])
	assert.Error(t, err, "length points past datagram end")
}

func TestLinesFrameLengthLimit(t *testing.T) {
	t.Parallel()
	long := make([]byte, MaxLinesLen)
	for i := range long {
		long[i] = 'a'
	}
	_, err := LinesFrame(0, string(long))
	assert.Error(t, err)
}

func TestHandlerAcksAndDispatches(t *testing.T) {
	t.Parallel()
	var sent [][]byte
	h := NewHandler(func(b []byte) error {
		sent = append(sent, b)
		return nil
	})
	var gotLines []string
	h.OnLines = func(head Header, lines string) {
		gotLines = append(gotLines, lines)
	}

	// Two lines frames packed into one datagram.
	f1, err := LinesFrame(3, "start")
	require.NoError(t, err)
	f2, err := LinesFrame(4, "done")
	require.NoError(t, err)
	datagram := append(Encode(f1), Encode(f2)...)

	require.NoError(t, h.HandleDatagram(datagram))
	assert.Equal(t, []string{"start", "done"}, gotLines)

	// Each frame was acknowledged with its own sequence.
	require.Len(t, sent, 2)
	for i, wantSeq := range []uint32{3, 4} {
		ack, n, err := Decode(sent[i])
		require.NoError(t, err)
		assert.Equal(t, len(sent[i]), n)
		assert.Equal(t, MsgAck, ack.Header.Type)
		assert.Equal(t, wantSeq, ack.Header.Sequence)
	}
}

func TestHandlerDoesNotAckAcks(t *testing.T) {
	t.Parallel()
	var sent [][]byte
	h := NewHandler(func(b []byte) error {
		sent = append(sent, b)
		return nil
	})
	var acked []uint32
	h.OnAck = func(seq uint32) { acked = append(acked, seq) }

	require.NoError(t, h.HandleDatagram(Encode(AckFrame(9))))
	assert.Empty(t, sent)
	assert.Equal(t, []uint32{9}, acked)
}

func TestHandlerSequenceAssignment(t *testing.T) {
	t.Parallel()
	h := NewHandler(func([]byte) error { return nil })
	s0, err := h.SendLines("one")
	require.NoError(t, err)
	s1, err := h.SendLines("two")
	require.NoError(t, err)
	assert.Equal(t, s0+1, s1)
}
