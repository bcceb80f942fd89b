package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/pkg/errors"
)

// encMode is the CBOR encoder mode for frame payloads.
// Configured for deterministic encoding.
var encMode cbor.EncMode

// decMode is the CBOR decoder mode for frame payloads.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// Unknown fields and duplicate keys fail the frame.
	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		IndefLength:       cbor.IndefLengthForbidden,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

// CBOR encodes messages of type T as a single CBOR data item.
// Decode returns a T value (not a pointer).
type CBOR[T any] struct{}

// Encode marshals m. Values of type T and *T are accepted.
func (CBOR[T]) Encode(m any) ([]byte, error) {
	switch m.(type) {
	case T, *T:
	default:
		var zero T
		return nil, errors.Wrapf(ErrUnsupportedType, "%T, want %T", m, zero)
	}

	data, err := encMode.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "cbor encode")
	}
	return data, nil
}

// Decode unmarshals the first data item of frame and checks the padding.
func (CBOR[T]) Decode(frame []byte) (any, error) {
	var v T
	rest, err := decMode.UnmarshalFirst(frame, &v)
	if err != nil {
		return nil, errors.Wrap(ErrMalformed, err.Error())
	}
	if !isZero(rest) {
		return nil, errors.Wrap(ErrMalformed, "non-zero padding")
	}
	return v, nil
}
