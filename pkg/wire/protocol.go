package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// API keys identify the RPC carried by a request frame.
const (
	apiKeySendMessage      int16 = 0
	apiKeyReceiveMessage   int16 = 1
	apiKeyCreateTopic      int16 = 2
	apiKeyGetNextInstance  int16 = 3
	apiKeyRegisterInstance int16 = 4
)

// MaxFrameSize bounds a single request or response frame.
const MaxFrameSize = 10 * 1024 * 1024

var (
	// ErrInsufficientData means a frame ended before its payload did.
	ErrInsufficientData = errors.New("insufficient data to decode packet")
	// ErrFrameTooLarge means a peer advertised a frame above MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame exceeds maximum size")
)

// message is anything that can cross the wire as a frame body.
type message interface {
	encode(pe *encoder)
	decode(pd *decoder) error
}

// request header: api key, correlation id. response header: correlation id.

func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf[:])
	if size > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func encodeRequest(apiKey int16, correlationID int32, req message) []byte {
	pe := &encoder{}
	pe.putInt16(apiKey)
	pe.putInt32(correlationID)
	req.encode(pe)
	return pe.bytes()
}

func encodeResponse(correlationID int32, resp message) []byte {
	pe := &encoder{}
	pe.putInt32(correlationID)
	resp.encode(pe)
	return pe.bytes()
}
