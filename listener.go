package framesock

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

const (
	// defaultBacklog is used when Setup is given a non-positive backlog.
	defaultBacklog = 128

	// Accept loop backoff bounds for transient failures such as EMFILE.
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// AcceptFunc receives every accepted connection. Ownership of the Conn
// passes to the callback. It runs on its own goroutine, so a slow callback
// never delays the next accept.
type AcceptFunc func(*Conn)

// Listener binds a TCP address, listens and accepts connections.
// It never reads or writes message content and keeps no record of the
// connections it produced.
type Listener struct {
	name     string
	logger   Logger
	connOpts []Option
	onAccept AcceptFunc

	mu      sync.Mutex
	state   ListenerState
	backlog int
	sock    *boundSocket
	addr    *net.TCPAddr
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// ListenerOption configures a Listener.
type ListenerOption func(*Listener)

// ListenerNameOption sets the name used in the listener's log lines.
func ListenerNameOption(name string) ListenerOption {
	return func(l *Listener) {
		l.name = name
	}
}

// ListenerLoggerOption sets the logger for the listener.
func ListenerLoggerOption(logger Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// ListenerConnOptions sets the options applied to every accepted Conn.
// A codec option is required.
func ListenerConnOptions(opts ...Option) ListenerOption {
	return func(l *Listener) {
		l.connOpts = append(l.connOpts, opts...)
	}
}

// NewListener creates an unbound listener that hands accepted connections to onAccept.
func NewListener(onAccept AcceptFunc, opts ...ListenerOption) *Listener {
	l := &Listener{
		name:     "framesock",
		logger:   slog.Default(),
		onAccept: onAccept,
		state:    ListenerUnbound,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.logger = withFields(l.logger, "listener", l.name)
	l.logger.Debug("listener created")

	return l
}

// Setup binds the listener to address and records the backlog used by Start.
// A failure is returned as a *BindError; Setup never retries.
func (l *Listener) Setup(address string, backlog int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != ListenerUnbound {
		return errors.Wrapf(ErrListenerState, "setup in state %s", l.state)
	}

	sock, err := bindSocket(address)
	if err != nil {
		l.logger.Error("setup failed", "addr", address, "error", err)
		return &BindError{Addr: address, Err: err}
	}

	if backlog <= 0 {
		backlog = defaultBacklog
	}

	l.sock = sock
	l.addr = sock.addr
	l.backlog = backlog
	l.state = ListenerBound
	l.logger.Info("listener bound", "addr", l.addr, "backlog", backlog)

	return nil
}

// Start begins listening and accepting. It returns once the accept loop is
// running; the loop stops when ctx is canceled or Close is called.
func (l *Listener) Start(ctx context.Context) error {
	if l.onAccept == nil {
		return ErrInvalidOnAccept
	}

	var opts options
	for _, o := range l.connOpts {
		o(&opts)
	}
	if err := checkOptions(&opts); err != nil {
		return errors.WithMessage(err, "connection options")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != ListenerBound {
		return errors.Wrapf(ErrListenerState, "start in state %s", l.state)
	}

	ln, err := l.sock.listen(l.backlog)
	if err != nil {
		_ = l.sock.close()
		l.logger.Error("listen failed", "addr", l.addr, "error", err)
		return &BindError{Addr: l.addr.String(), Err: err}
	}
	if tcpAddr, ok := ln.Addr().(*net.TCPAddr); ok {
		l.addr = tcpAddr
	}

	ctx, l.cancel = context.WithCancel(ctx)
	group, child := errgroup.WithContext(ctx)

	group.Go(func() error {
		return l.acceptLoop(child, ln, opts)
	})

	group.Go(func() error {
		<-child.Done()
		l.mu.Lock()
		l.state = ListenerClosed
		l.mu.Unlock()

		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		return nil
	})

	l.group = group
	l.state = ListenerListening
	l.logger.Info("listener started", "addr", l.addr)

	return nil
}

// Wait blocks until the accept loop has stopped.
func (l *Listener) Wait() error {
	l.mu.Lock()
	group := l.group
	l.mu.Unlock()

	if group == nil {
		return nil
	}
	return group.Wait()
}

// Close stops accepting and releases the listening socket. Connections
// already handed out are not affected. Safe to call multiple times.
func (l *Listener) Close() error {
	l.mu.Lock()
	prev := l.state
	l.state = ListenerClosed
	cancel := l.cancel
	sock := l.sock
	l.mu.Unlock()

	switch prev {
	case ListenerClosed, ListenerUnbound:
		return nil
	case ListenerBound:
		return sock.close()
	}

	cancel()
	err := l.Wait()
	l.logger.Info("listener stopped", "addr", l.addr)
	return err
}

// State returns the lifecycle state of the listener.
func (l *Listener) State() ListenerState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.name
}

// Addr returns the bound address, or nil before Setup.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.addr == nil {
		return nil
	}
	return l.addr
}

// IP returns the bound IP address as a string.
func (l *Listener) IP() string {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.IP.String()
	}
	return ""
}

// Port returns the bound port, or 0 before Setup.
func (l *Listener) Port() int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// acceptLoop accepts until ctx is done. Accept errors are logged and
// retried after a growing delay; they never stop the loop.
func (l *Listener) acceptLoop(ctx context.Context, ln net.Listener, opts options) error {
	var delay time.Duration

	for {
		raw, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}

			delay = nextAcceptDelay(delay)
			l.logger.Error("accept error", "error", err, "retry_in", delay)

			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return nil
			}
		}
		delay = 0

		if tcpConn, ok := raw.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}

		conn := newConnWithOptions(raw, opts)
		l.logger.Debug("accepted connection", "conn", conn.ID(), "remote_addr", raw.RemoteAddr())

		go l.onAccept(conn)
	}
}

func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}
