package framesock

// Message is an application message. The connection never inspects it;
// only the Codec knows its shape.
type Message = any

// Codec is the interface for message encoding and decoding.
// Applications implement it to define the payload format carried inside
// each fixed-size frame (see the codec package for ready-made ones).
//
// Encode may return fewer than frame size bytes; the connection pads the
// rest of the frame with zeros. Decode always receives exactly one full
// frame, padding included, and must not retain the slice after returning.
type Codec interface {
	// Encode encodes a Message into at most frame size bytes.
	Encode(Message) ([]byte, error)
	// Decode decodes one complete frame.
	Decode(frame []byte) (Message, error)
}
