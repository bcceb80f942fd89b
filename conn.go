// Package framesock provides a fixed-size-frame message layer over TCP.
// Every message occupies exactly one frame of a configured size on the wire.
// A Conn assembles frames from partial reads, decodes them with a pluggable
// Codec, and closes itself when a peer keeps sending malformed frames.
// A Listener binds, listens and hands each accepted Conn to a callback.
package framesock

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Default configuration values.
const (
	// defaultFrameSize is the default number of bytes per frame.
	defaultFrameSize = 1024
	// defaultMaxFailures is the default lifetime budget of malformed frames.
	defaultMaxFailures = 10
	// defaultMaxConsecutiveFailures is the default budget of malformed frames in a row.
	defaultMaxConsecutiveFailures = 3
	// defaultSyncTimeout bounds ReadSync when no timeout is given.
	defaultSyncTimeout = 5 * time.Second
	// defaultCloseTimeout bounds the final frame written by CloseWith.
	defaultCloseTimeout = time.Second
)

// Conn is one framed connection over a stream socket.
// It owns the socket, the receive accumulator and the send buffer.
//
// Reads come in two flavours that never overlap: ReadSync blocks the caller
// until a full frame arrives, ReadAsync delivers frames to the message
// callback from a background goroutine. Writes may run concurrently with
// either of them.
type Conn struct {
	rawConn net.Conn
	id      string
	logger  Logger
	opts    options

	mu         sync.Mutex
	state      ConnState
	continuous bool
	policy     failurePolicy
	onMessage  func(Message)

	// acc is touched only by the path that moved state out of StateIdle.
	acc *accumulator

	writeMu sync.Mutex
	sendBuf []byte

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

// NewConn creates a framed connection around an established stream.
// It applies the provided options and validates them before returning.
// Returns an error if the codec is missing or the frame size is invalid.
func NewConn(conn net.Conn, opt ...Option) (*Conn, error) {
	var opts options
	for _, o := range opt {
		o(&opts)
	}

	if err := checkOptions(&opts); err != nil {
		return nil, err
	}

	return newConnWithOptions(conn, opts), nil
}

// checkOptions validates and sets default values for connection options.
func checkOptions(opts *options) error {
	if opts.codec == nil {
		return ErrInvalidCodec
	}

	if opts.frameSize < 0 {
		return errors.Wrapf(ErrInvalidFrameSize, "%d", opts.frameSize)
	}
	if opts.frameSize == 0 {
		opts.frameSize = defaultFrameSize
	}

	if opts.maxFailures <= 0 {
		opts.maxFailures = defaultMaxFailures
	}

	if opts.maxConsecutiveFailures <= 0 {
		opts.maxConsecutiveFailures = defaultMaxConsecutiveFailures
	}

	if opts.syncTimeout <= 0 {
		opts.syncTimeout = defaultSyncTimeout
	}

	if opts.closeTimeout <= 0 {
		opts.closeTimeout = defaultCloseTimeout
	}

	if opts.logger == nil {
		opts.logger = defaultLogger()
	}

	return nil
}

// newConnWithOptions creates a new Conn with already validated options.
func newConnWithOptions(c net.Conn, opts options) *Conn {
	id := uuid.New().String()
	return &Conn{
		rawConn:   c,
		id:        id,
		logger:    withFields(opts.logger, "conn", id, "addr", c.RemoteAddr()),
		opts:      opts,
		state:     StateIdle,
		policy:    newFailurePolicy(opts.maxFailures, opts.maxConsecutiveFailures),
		onMessage: opts.onMessage,
		acc:       newAccumulator(opts.frameSize),
		sendBuf:   make([]byte, opts.frameSize),
		done:      make(chan struct{}),
	}
}

// ID returns the unique identifier assigned to the connection.
func (c *Conn) ID() string {
	return c.id
}

// State returns the current connection state.
func (c *Conn) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsClosed returns true if the connection has been closed.
func (c *Conn) IsClosed() bool {
	return c.State() == StateClosing
}

// Done returns a channel that is closed once the socket has been released.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// FrameSize returns the number of bytes every frame occupies on the wire.
func (c *Conn) FrameSize() int {
	return c.opts.frameSize
}

// Failures returns the total and consecutive malformed frame counts.
func (c *Conn) Failures() (total, consecutive int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.policy.failures, c.policy.consecutive
}

// RemoteAddr returns the remote address of the connection.
func (c *Conn) RemoteAddr() net.Addr {
	return c.rawConn.RemoteAddr()
}

// LocalAddr returns the local address of the connection.
func (c *Conn) LocalAddr() net.Addr {
	return c.rawConn.LocalAddr()
}

// OnMessage replaces the asynchronous message callback. Passing nil clears it;
// frames assembled while no callback is set are decoded and dropped.
func (c *Conn) OnMessage(cb func(Message)) {
	c.mu.Lock()
	c.onMessage = cb
	c.mu.Unlock()
}

// ReadSync blocks until one full frame has arrived and returns its decoded
// message. A timeout of zero uses the configured default. When the deadline
// expires the returned error satisfies IsTimeout, the connection stays open
// and any partial frame is kept for the next read.
func (c *Conn) ReadSync(timeout time.Duration) (Message, error) {
	if timeout <= 0 {
		timeout = c.opts.syncTimeout
	}

	c.mu.Lock()
	switch c.state {
	case StateClosing:
		c.mu.Unlock()
		return nil, ErrConnectionClosed
	case StateSyncReading, StateAsyncReading:
		c.mu.Unlock()
		return nil, ErrConcurrentRead
	}
	c.state = StateSyncReading
	c.mu.Unlock()

	err := c.readFrame(time.Now().Add(timeout))
	if err != nil {
		err = c.syncReadFailed(err)
		c.releaseReadSlot()
		return nil, err
	}

	msg, err := c.handleFrame()
	if !c.releaseReadSlot() {
		if err != nil {
			return nil, err
		}
		return nil, ErrConnectionClosed
	}
	return msg, err
}

// ReadAsync arms an asynchronous read and returns immediately. The decoded
// message is delivered to the OnMessage callback from another goroutine.
// With continuous set, the read re-arms itself after every frame until the
// connection closes or ReadAsync(false) is called. Calling ReadAsync while a
// read is already armed only updates the continuous flag.
func (c *Conn) ReadAsync(continuous bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateClosing:
		return ErrConnectionClosed
	case StateSyncReading:
		return ErrConcurrentRead
	case StateAsyncReading:
		c.continuous = continuous
		return nil
	}

	c.state = StateAsyncReading
	c.continuous = continuous
	go c.receiveLoop()

	return nil
}

// Write encodes message into one frame and sends it. The frame is padded
// with zeros up to the frame size. A transport failure closes the connection.
func (c *Conn) Write(message Message) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	data, err := c.opts.codec.Encode(message)
	if err != nil {
		return errors.Wrap(err, "encode")
	}
	if len(data) > c.opts.frameSize {
		return errors.Wrapf(ErrFrameOverflow, "%d > %d", len(data), c.opts.frameSize)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}

	if err := c.writeFrame(data, c.opts.writeTimeout); err != nil {
		if c.IsClosed() {
			return ErrConnectionClosed
		}
		te := &TransportError{Op: "write", Err: err}
		c.logger.Warn("write error", "error", err)
		c.shutdown(te)
		return te
	}

	return nil
}

// Close closes the connection. Safe to call multiple times; only the first
// call can return an error.
func (c *Conn) Close() error {
	return c.close(nil, nil, false)
}

// CloseWith makes a best-effort attempt to send message as a final frame
// and then closes the connection. Failing to send it is not an error.
func (c *Conn) CloseWith(message Message) error {
	return c.close(nil, message, true)
}

// readFrame fills the accumulator until a full frame is present or the
// deadline passes.
func (c *Conn) readFrame(deadline time.Time) error {
	if err := c.rawConn.SetReadDeadline(deadline); err != nil {
		return err
	}
	defer func() { _ = c.rawConn.SetReadDeadline(time.Time{}) }()

	for {
		complete, err := c.acc.readFrom(c.rawConn)
		if complete {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// handleFrame decodes the assembled frame, clears the accumulator and
// applies the failure policy. The caller must hold the read slot.
func (c *Conn) handleFrame() (Message, error) {
	msg, err := c.opts.codec.Decode(c.acc.frame())
	c.acc.reset()

	c.mu.Lock()
	if err == nil {
		c.policy.success()
		c.mu.Unlock()
		return msg, nil
	}

	exhausted := c.policy.failure()
	derr := &DecodeError{
		Err:         err,
		Failures:    c.policy.failures,
		Consecutive: c.policy.consecutive,
		Closed:      exhausted,
	}
	c.mu.Unlock()

	if exhausted {
		c.logger.Warn("failure budget exhausted", "failures", derr.Failures, "consecutive", derr.Consecutive)
		c.shutdown(derr)
	}

	return nil, derr
}

// releaseReadSlot returns a reading connection to StateIdle.
// It reports false when the connection was closed meanwhile.
func (c *Conn) releaseReadSlot() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateClosing {
		return false
	}
	c.state = StateIdle
	return true
}

// syncReadFailed maps a read error to what ReadSync reports.
func (c *Conn) syncReadFailed(err error) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	te := &TransportError{Op: "read", Err: err}
	if te.Timeout() {
		c.logger.Debug("read timeout", "buffered", c.acc.buffered())
		return te
	}

	c.logger.Warn("read error", "error", err)
	c.shutdown(te)
	return te
}

// receiveLoop runs the asynchronous read path. Exactly one instance runs
// while the connection is in StateAsyncReading.
func (c *Conn) receiveLoop() {
	for {
		complete, err := c.acc.readFrom(c.rawConn)
		if !complete {
			if err != nil {
				c.asyncReadFailed(err)
				return
			}
			// partial frame, or an empty read before any byte arrived
			continue
		}

		msg, err := c.handleFrame()
		if err != nil {
			c.logger.Warn("dropping malformed frame", "error", err)
		}

		c.mu.Lock()
		if c.state == StateClosing {
			c.mu.Unlock()
			return
		}
		rearm := c.continuous
		if !rearm {
			c.state = StateIdle
		}
		cb := c.onMessage
		c.mu.Unlock()

		if err == nil && cb != nil {
			cb(msg)
		}

		if !rearm {
			return
		}
	}
}

// asyncReadFailed closes the connection after a read error on the
// asynchronous path. There is no caller to report to, so it only logs.
func (c *Conn) asyncReadFailed(err error) {
	if c.IsClosed() {
		return
	}

	if errors.Is(err, io.EOF) {
		c.logger.Info("peer closed connection", "buffered", c.acc.buffered())
	} else {
		c.logger.Warn("read error", "error", err)
	}
	c.shutdown(&TransportError{Op: "read", Err: err})
}

// writeFrame copies data into the send buffer and sends the whole frame.
// The caller must hold writeMu.
func (c *Conn) writeFrame(data []byte, timeout time.Duration) error {
	n := copy(c.sendBuf, data)
	clear(c.sendBuf[n:])
	defer clear(c.sendBuf)

	if timeout > 0 {
		_ = c.rawConn.SetWriteDeadline(time.Now().Add(timeout))
		defer func() { _ = c.rawConn.SetWriteDeadline(time.Time{}) }()
	}

	_, err := c.rawConn.Write(c.sendBuf)
	return err
}

// shutdown closes the connection because of reason.
func (c *Conn) shutdown(reason error) {
	_ = c.close(reason, nil, false)
}

// close moves the connection to StateClosing, optionally sends a final
// frame and releases the socket.
func (c *Conn) close(reason error, final Message, withFinal bool) error {
	c.mu.Lock()
	if c.state == StateClosing {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosing
	c.mu.Unlock()

	if withFinal {
		c.sendFinal(final)
	}

	return c.release(reason)
}

// sendFinal writes one last frame without blocking behind a stuck writer.
func (c *Conn) sendFinal(message Message) {
	data, err := c.opts.codec.Encode(message)
	if err != nil || len(data) > c.opts.frameSize {
		c.logger.Debug("final message not sent", "error", err, "size", len(data))
		return
	}

	if !c.writeMu.TryLock() {
		c.logger.Debug("final message not sent", "error", "write in progress")
		return
	}
	defer c.writeMu.Unlock()

	if err := c.writeFrame(data, c.opts.closeTimeout); err != nil {
		c.logger.Debug("final message not sent", "error", err)
	}
}

// release closes the underlying socket exactly once.
func (c *Conn) release(reason error) error {
	c.closeOnce.Do(func() {
		err := c.rawConn.Close()
		if errors.Is(err, net.ErrClosed) {
			err = nil
		}
		c.closeErr = err

		if reason != nil {
			c.logger.Info("connection closed", "reason", reason)
		} else {
			c.logger.Info("connection closed")
		}

		close(c.done)

		if c.opts.onClose != nil {
			c.opts.onClose(c)
		}
	})

	return c.closeErr
}
