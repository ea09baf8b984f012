package server

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
)

// Frame types. A frame is type (1 byte) | length (uint32 big endian) |
// payload.
const (
	FrameTotalPages = byte(0x00)
	FramePageDone   = byte(0x01)
	FrameResult     = byte(0x02)
	FrameError      = byte(0xFF)
)

// MaxFramePayload is the largest payload the length field can carry.
const MaxFramePayload = math.MaxUint32

// ErrFrameTooLarge is returned for payloads over MaxFramePayload or over
// the limit given to ReadFrame.
var ErrFrameTooLarge = errors.New("frame payload too large")

// Frame is one decoded frame.
type Frame struct {
	Type    byte
	Payload []byte
}

// TotalPagesPayload is the JSON body of FrameTotalPages.
type TotalPagesPayload struct {
	TotalPages int `json:"totalPages"`
}

// PageDonePayload is the JSON body of FramePageDone.
type PageDonePayload struct {
	PageDone int `json:"pageDone"`
}

// ErrorPayload is the JSON body of FrameError.
type ErrorPayload struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Page    int    `json:"page"`
}

// WriteFrame writes one frame. Payloads longer than MaxFramePayload are
// rejected before anything is written.
func WriteFrame(w io.Writer, typ byte, payload []byte) error {
	if uint64(len(payload)) > MaxFramePayload {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}
	var header [5]byte
	header[0] = typ
	binary.BigEndian.PutUint32(header[1:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// WriteJSONFrame writes a frame with a JSON payload.
func WriteJSONFrame(w io.Writer, typ byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return WriteFrame(w, typ, data)
}

// ReadFrame reads one frame whose payload is at most limit bytes. The
// length is checked before the payload is allocated. It returns io.EOF at
// a clean end of stream.
func ReadFrame(r io.Reader, limit int64) (Frame, error) {
	var header [5]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, fmt.Errorf("truncated frame header: %w", err)
		}
		return Frame{}, err
	}
	n := binary.BigEndian.Uint32(header[1:])
	if int64(n) > limit {
		return Frame{}, fmt.Errorf("%w: %d bytes, limit %d", ErrFrameTooLarge, n, limit)
	}
	f := Frame{Type: header[0], Payload: make([]byte, n)}
	if _, err := io.ReadFull(r, f.Payload); err != nil {
		return Frame{}, fmt.Errorf("truncated frame payload: %w", err)
	}
	return f, nil
}
