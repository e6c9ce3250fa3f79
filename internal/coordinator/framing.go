package coordinator

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maxFrameBytes bounds a single framed message, mirroring the input-size
// cap the HTTP surface applies to a posted event table.
const maxFrameBytes = 64 << 20

// readFrame reads one length-prefixed message: a 4-byte big-endian
// length header followed by that many opaque payload bytes (spec.md §6).
func readFrame(r io.Reader) ([]byte, error) {
	var lengthBuf [4]byte
	if _, err := io.ReadFull(r, lengthBuf[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}
	length := binary.BigEndian.Uint32(lengthBuf[:])
	if length > maxFrameBytes {
		return nil, fmt.Errorf("frame length %d exceeds maximum %d", length, maxFrameBytes)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

// writeFrame writes one length-prefixed message.
func writeFrame(w io.Writer, payload []byte) error {
	var lengthBuf [4]byte
	binary.BigEndian.PutUint32(lengthBuf[:], uint32(len(payload)))
	if _, err := w.Write(lengthBuf[:]); err != nil {
		return fmt.Errorf("writing frame length: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("writing frame payload: %w", err)
	}
	return nil
}
