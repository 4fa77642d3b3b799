package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
)

// MaxFrameSize is the default ceiling for a single frame body.
const MaxFrameSize = 2_000_000

const headerSize = 4

var (
	ErrBadFrameLength = errors.New("bad frame length")
	ErrBadJSON        = errors.New("payload is not valid json")
	ErrMissingType    = errors.New("message type is missing")
)

// ReadFrame blocks for a 4-byte big-endian length and then that many body bytes.
// A length outside (0, limit] returns ErrBadFrameLength; a peer close returns io.EOF.
func ReadFrame(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		limit = MaxFrameSize
	}
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	n := int32(binary.BigEndian.Uint32(header[:]))
	if n <= 0 || int(n) > limit {
		return nil, fmt.Errorf("%w: %d", ErrBadFrameLength, n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, io.EOF
		}
		return nil, err
	}
	return body, nil
}

// WriteFrame writes one length-prefixed frame. Callers sharing w must serialize.
func WriteFrame(w io.Writer, body []byte) error {
	buf := make([]byte, headerSize+len(body))
	binary.BigEndian.PutUint32(buf, uint32(len(body)))
	copy(buf[headerSize:], body)
	_, err := w.Write(buf)
	return err
}

// FrameWriter serializes frame writes to a single connection.
type FrameWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

func (fw *FrameWriter) WriteFrame(body []byte) error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return WriteFrame(fw.w, body)
}

// Encode builds an envelope for msgType with payload marshalled as JSON.
func Encode(msgType string, requestID *string, payload any) ([]byte, error) {
	env := Envelope{Type: msgType, RequestID: requestID}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
		}
		env.Payload = raw
	}
	return json.Marshal(env)
}

// Decode parses an envelope and requires a non-blank type.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrBadJSON, err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return env, ErrMissingType
	}
	return env, nil
}

// DecodePayload unmarshals the envelope payload into v. A missing or null
// payload leaves v untouched.
func (e Envelope) DecodePayload(v any) error {
	if len(e.Payload) == 0 || string(e.Payload) == "null" {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}
