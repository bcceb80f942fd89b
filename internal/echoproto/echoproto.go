// Package echoproto holds what the echo server and the interactive client
// must agree on: the message type and how a codec is chosen by name.
package echoproto

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/codec"
)

// Codec names accepted in configuration.
const (
	CodecRaw  = "raw"
	CodecCBOR = "cbor"
)

// ErrUnknownCodec is returned for codec names other than CodecRaw and CodecCBOR.
var ErrUnknownCodec = errors.New("unknown codec")

// Message is the structured echo message carried by the CBOR codec.
type Message struct {
	Seq  uint64 `cbor:"1,keyasint"`
	Text string `cbor:"2,keyasint"`
}

// Codec returns the codec registered under name.
func Codec(name string) (framesock.Codec, error) {
	switch name {
	case CodecRaw, "":
		return codec.Raw{}, nil
	case CodecCBOR:
		return codec.CBOR[Message]{}, nil
	default:
		return nil, errors.Wrapf(ErrUnknownCodec, "%q", name)
	}
}

// New builds the message for text in the shape codecName expects.
func New(codecName string, seq uint64, text string) framesock.Message {
	if codecName == CodecCBOR {
		return Message{Seq: seq, Text: text}
	}
	return codec.Payload(text)
}

// Text renders a decoded message for display.
func Text(m framesock.Message) string {
	switch v := m.(type) {
	case codec.Payload:
		return string(v)
	case Message:
		return fmt.Sprintf("#%d %s", v.Seq, v.Text)
	default:
		return fmt.Sprintf("%v", v)
	}
}
