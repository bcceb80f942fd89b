package framesock

import (
	"time"

	"github.com/pkg/errors"
)

// Handle is the narrow view of a Conn given to application handlers.
// It forwards every call to the underlying connection. A Write that fails
// at the transport level has already closed the connection; the Handle
// logs it so the handler can simply move on.
type Handle struct {
	conn   *Conn
	logger Logger
}

// NewHandle wraps conn.
func NewHandle(conn *Conn) *Handle {
	return &Handle{conn: conn, logger: conn.logger}
}

// Conn returns the wrapped connection.
func (h *Handle) Conn() *Conn {
	return h.conn
}

// OnMessage registers the asynchronous message callback. Nil clears it.
func (h *Handle) OnMessage(cb func(Message)) {
	h.conn.OnMessage(cb)
}

// ReadSync reads one message, blocking for at most timeout.
func (h *Handle) ReadSync(timeout time.Duration) (Message, error) {
	return h.conn.ReadSync(timeout)
}

// ReadAsync arms an asynchronous read.
func (h *Handle) ReadAsync(continuous bool) error {
	return h.conn.ReadAsync(continuous)
}

// Write sends message. Transport failures are logged at error level.
func (h *Handle) Write(message Message) error {
	err := h.conn.Write(message)
	if err == nil {
		return nil
	}

	var te *TransportError
	if errors.As(err, &te) {
		h.logger.Error("write failed", "error", err, "closed", h.conn.IsClosed())
	}
	return err
}

// Close closes the underlying connection.
func (h *Handle) Close() error {
	return h.conn.Close()
}

// CloseWith sends a final message on a best-effort basis and closes.
func (h *Handle) CloseWith(message Message) error {
	return h.conn.CloseWith(message)
}

// Closed reports whether the underlying connection is closed.
func (h *Handle) Closed() bool {
	return h.conn.IsClosed()
}
