package spiwrite

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/ulikunitz/xz"

	"github.com/vk-instruments/spibeam/internal/beam"
)

// bulkHeaderLen is the command-type header prefixed to every bulk payload.
const bulkHeaderLen = 3

// bulk payloads address the transmit channel registers of each chip in a
// fixed walk: channel cycling fastest, then chip 0x00..0x1F, then bus.
var bulkChannels = [4]uint8{0x27, 0x3F, 0x47, 0x5F}

const bulkChipCount = 0x20

var xzMagic = []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}

func isZlib(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0F == 8 && (uint32(cmf)<<8+uint32(flg))%31 == 0
}

// DecodePayload unwraps a BINARY payload body: an optional base64 layer,
// then zlib or xz compression detected by magic bytes. Unrecognised data
// passes through as-is.
func DecodePayload(data []byte) ([]byte, error) {
	if decoded, err := base64.StdEncoding.DecodeString(string(bytes.TrimSpace(data))); err == nil {
		data = decoded
	}

	switch {
	case isZlib(data):
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("spiwrite: zlib payload: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("spiwrite: zlib decompress: %w", err)
		}
		return out, nil
	case bytes.HasPrefix(data, xzMagic):
		r, err := xz.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("spiwrite: xz payload: %w", err)
		}
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("spiwrite: xz decompress: %w", err)
		}
		return out, nil
	default:
		return data, nil
	}
}

// BulkFrames expands a decoded bulk payload into per-bus frame sequences.
// After the 3-byte header the payload is a stream of big-endian 16-bit
// command values assigned along the fixed channel/chip/bus walk. A short
// final value is rejected; a payload shorter than 8 full buses simply
// fills fewer buses.
func BulkFrames(data []byte) ([][]beam.Frame, error) {
	if len(data) < bulkHeaderLen {
		return nil, fmt.Errorf("spiwrite: bulk payload too short (%d bytes)", len(data))
	}
	body := data[bulkHeaderLen:]
	if len(body)%2 != 0 {
		return nil, fmt.Errorf("spiwrite: bulk payload carries a split 16-bit value")
	}

	perBus := len(bulkChannels) * bulkChipCount
	var out [][]beam.Frame
	var cur []beam.Frame
	chip, chanIdx := uint8(0), 0
	for off := 0; off+1 < len(body); off += 2 {
		if len(out) == busCount {
			return nil, fmt.Errorf("spiwrite: bulk payload exceeds %d buses", busCount)
		}
		value := uint16(body[off])<<8 | uint16(body[off+1])
		cur = append(cur, beam.Frame{
			beam.FrameHeader,
			chip,
			bulkChannels[chanIdx],
			byte(value >> 8),
			byte(value),
		})

		if chanIdx++; chanIdx == len(bulkChannels) {
			chanIdx = 0
			if chip++; chip == bulkChipCount {
				chip = 0
			}
		}
		if len(cur) == perBus {
			out = append(out, cur)
			cur = nil
		}
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out, nil
}
