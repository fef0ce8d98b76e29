package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/wagiedev/esbuild-service-go/internal/errors"
)

// MaxFrameSize bounds the payload of a single inbound frame.
const MaxFrameSize = 64 * 1024 * 1024

// ReadFrame reads one length-prefixed frame from r and returns its payload.
//
// A stream that ends before a complete frame was read yields io.EOF when no
// byte of the frame arrived and io.ErrUnexpectedEOF otherwise.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}

	size := binary.LittleEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, &errors.ProtocolError{
			Reason: fmt.Sprintf("frame of %d bytes exceeds limit of %d", size, MaxFrameSize),
		}
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.EOF {
			return nil, io.ErrUnexpectedEOF
		}

		return nil, err
	}

	return payload, nil
}

// WriteFrame encodes a packet and writes the complete frame to w in a single
// Write call.
func WriteFrame(w io.Writer, id uint32, dir Direction, value Value) error {
	frame, err := EncodePacket(id, dir, value)
	if err != nil {
		return err
	}

	_, err = w.Write(frame)

	return err
}
