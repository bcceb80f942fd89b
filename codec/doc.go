// Package codec provides fixed-frame codecs for framesock connections.
//
// Both codecs produce encodings shorter than or equal to the frame size and
// accept a full frame on decode, treating everything after the encoded
// value as padding that must be zero. A frame with non-zero padding is
// rejected, so stale or injected bytes never pass as a valid message.
//
//	Raw:  [2B length][payload][zero padding]
//	CBOR: [one CBOR data item][zero padding]
package codec
