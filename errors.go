package framesock

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Errors returned by connection and listener operations.
var (
	// ErrInvalidCodec is returned when no codec is provided.
	ErrInvalidCodec = errors.New("invalid codec")
	// ErrInvalidFrameSize is returned when the frame size is not positive.
	ErrInvalidFrameSize = errors.New("invalid frame size")
	// ErrConnectionClosed is returned when operating on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")
	// ErrConcurrentRead is returned when a read is requested while another
	// read is still in flight on the same connection.
	ErrConcurrentRead = errors.New("concurrent read in progress")
	// ErrFrameOverflow is returned when an encoded message does not fit in one frame.
	ErrFrameOverflow = errors.New("encoded message exceeds frame size")
	// ErrInvalidOnAccept is returned when a listener has no acceptance callback.
	ErrInvalidOnAccept = errors.New("invalid on accept callback")
	// ErrListenerState is returned when Setup or Start is called out of order.
	ErrListenerState = errors.New("listener in wrong state")
)

// BindError reports a failure to bind the listening socket.
type BindError struct {
	Addr string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind %s: %v", e.Addr, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }

// DecodeError reports a frame the codec could not decode.
// Failures and Consecutive are the counter values after this failure;
// Closed is set when the failure exhausted the budget and the connection
// was closed as a result.
type DecodeError struct {
	Err         error
	Failures    int
	Consecutive int
	Closed      bool
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("malformed message (failures=%d consecutive=%d): %v",
		e.Failures, e.Consecutive, e.Err)
	if e.Closed {
		msg += "; connection closed"
	}
	return msg
}

func (e *DecodeError) Unwrap() error { return e.Err }

// TransportError reports a socket level failure during Op ("read" or "write").
// It closes the connection, except for a ReadSync timeout, which leaves the
// connection open with any partial frame kept.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was caused by an expired deadline.
func (e *TransportError) Timeout() bool {
	var netErr net.Error
	return errors.As(e.Err, &netErr) && netErr.Timeout()
}

// IsTimeout reports whether err is a transport error caused by a deadline.
func IsTimeout(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Timeout()
}
