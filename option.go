package framesock

import (
	"time"
)

// options holds the configuration for a connection.
type options struct {
	codec  Codec
	logger Logger

	onMessage func(Message)
	onClose   func(*Conn)

	frameSize              int           // bytes per frame on the wire
	maxFailures            int           // total malformed frames tolerated
	maxConsecutiveFailures int           // back-to-back malformed frames tolerated
	syncTimeout            time.Duration // default ReadSync bound
	writeTimeout           time.Duration // per Write deadline, 0 disables
	closeTimeout           time.Duration // bound on the final frame sent by CloseWith
}

// Option is a function that configures connection options.
type Option func(*options)

// CustomCodecOption returns an Option that sets the message codec.
// The codec is required and must be provided before creating a connection.
func CustomCodecOption(codec Codec) Option {
	return func(o *options) {
		o.codec = codec
	}
}

// FrameSizeOption returns an Option that sets the fixed frame size in bytes.
// Both peers must agree on it.
func FrameSizeOption(size int) Option {
	return func(o *options) {
		o.frameSize = size
	}
}

// MaxFailuresOption returns an Option that sets how many malformed frames
// a connection tolerates over its lifetime before it is closed.
func MaxFailuresOption(n int) Option {
	return func(o *options) {
		o.maxFailures = n
	}
}

// MaxConsecutiveFailuresOption returns an Option that sets how many malformed
// frames in a row a connection tolerates before it is closed.
func MaxConsecutiveFailuresOption(n int) Option {
	return func(o *options) {
		o.maxConsecutiveFailures = n
	}
}

// SyncTimeoutOption returns an Option that sets the bound used by ReadSync
// when it is called with a zero timeout.
func SyncTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.syncTimeout = timeout
	}
}

// WriteTimeoutOption returns an Option that sets a deadline for each Write.
// Zero means writes block until the stream accepts the frame.
func WriteTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.writeTimeout = timeout
	}
}

// CloseTimeoutOption returns an Option that bounds the final frame sent by CloseWith.
func CloseTimeoutOption(timeout time.Duration) Option {
	return func(o *options) {
		o.closeTimeout = timeout
	}
}

// OnMessageOption returns an Option that sets the asynchronous message callback.
// It can be replaced later with Conn.OnMessage.
func OnMessageOption(cb func(Message)) Option {
	return func(o *options) {
		o.onMessage = cb
	}
}

// OnCloseOption returns an Option that sets a callback invoked exactly once
// when the connection closes, whatever the cause.
func OnCloseOption(cb func(*Conn)) Option {
	return func(o *options) {
		o.onClose = cb
	}
}

// LoggerOption returns an Option that sets the logger.
// If not set, the default slog logger will be used.
func LoggerOption(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
