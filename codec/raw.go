package codec

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/pkg/errors"
)

// rawHeaderSize is the size of the big-endian payload length header.
const rawHeaderSize = 2

// Codec errors.
var (
	// ErrMalformed indicates a frame that does not hold a valid encoding.
	ErrMalformed = errors.New("malformed frame")
	// ErrPayloadTooLarge indicates a payload that cannot be length-headed.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrUnsupportedType indicates a message type the codec cannot encode.
	ErrUnsupportedType = errors.New("unsupported message type")
)

// Payload is the message type produced by Raw.
type Payload []byte

// Raw carries opaque byte payloads prefixed with their length.
// It encodes Payload, []byte and string values and decodes to Payload.
type Raw struct{}

// Encode returns the length header followed by the payload.
func (Raw) Encode(m any) ([]byte, error) {
	var p []byte
	switch v := m.(type) {
	case Payload:
		p = v
	case []byte:
		p = v
	case string:
		p = []byte(v)
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "%T", m)
	}

	if len(p) > math.MaxUint16 {
		return nil, errors.Wrapf(ErrPayloadTooLarge, "%d bytes", len(p))
	}

	out := make([]byte, rawHeaderSize+len(p))
	binary.BigEndian.PutUint16(out, uint16(len(p)))
	copy(out[rawHeaderSize:], p)
	return out, nil
}

// Decode validates the header and padding and returns a copy of the payload.
func (Raw) Decode(frame []byte) (any, error) {
	if len(frame) < rawHeaderSize {
		return nil, errors.Wrapf(ErrMalformed, "frame of %d bytes has no header", len(frame))
	}

	n := int(binary.BigEndian.Uint16(frame))
	end := rawHeaderSize + n
	if end > len(frame) {
		return nil, errors.Wrapf(ErrMalformed, "length %d exceeds frame of %d bytes", n, len(frame))
	}
	if !isZero(frame[end:]) {
		return nil, errors.Wrap(ErrMalformed, "non-zero padding")
	}

	return Payload(bytes.Clone(frame[rawHeaderSize:end])), nil
}

func isZero(b []byte) bool {
	for _, c := range b {
		if c != 0 {
			return false
		}
	}
	return true
}
