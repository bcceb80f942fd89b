// Command framesock-echo is a framed echo server: every message a peer
// sends is written back unchanged.
//
// Usage:
//
//	framesock-echo [-config echo.yaml] [-addr 127.0.0.1:9400] [-codec raw|cbor]
//	               [-frame-size 256] [-log-level info] [-mdns]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/internal/echoproto"
)

// server keeps the live connections so they can be told about shutdown.
type server struct {
	codecName string

	sync.RWMutex
	connections map[string]*framesock.Handle
}

func newServer(codecName string) *server {
	return &server{codecName: codecName, connections: make(map[string]*framesock.Handle)}
}

// Handle is the listener's acceptance callback.
func (s *server) Handle(conn *framesock.Conn) {
	h := framesock.NewHandle(conn)
	s.addConn(conn.ID(), h)

	// Echo
	h.OnMessage(func(m framesock.Message) {
		if err := h.Write(m); err != nil {
			slog.Debug("echo failed", "conn", conn.ID(), "error", err)
		}
	})

	if err := h.ReadAsync(true); err != nil {
		slog.Error("arm read failed", "conn", conn.ID(), "error", err)
		s.deleteConn(conn)
		_ = h.Close()
	}
}

func (s *server) addConn(connID string, h *framesock.Handle) {
	s.Lock()
	defer s.Unlock()

	slog.Info("add new conn", "conn", connID, "addr", h.Conn().RemoteAddr())
	s.connections[connID] = h
}

func (s *server) deleteConn(conn *framesock.Conn) {
	s.Lock()
	defer s.Unlock()

	delete(s.connections, conn.ID())
}

// closeAll sends a goodbye frame to every live connection and closes it.
func (s *server) closeAll() {
	s.RLock()
	handles := make([]*framesock.Handle, 0, len(s.connections))
	for _, h := range s.connections {
		handles = append(handles, h)
	}
	s.RUnlock()

	for _, h := range handles {
		_ = h.CloseWith(echoproto.New(s.codecName, 0, "server shutting down"))
	}
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		addr       string
		codecName  string
		frameSize  int
		logLevel   string
		mdns       bool
	)
	flag.StringVar(&configFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides config)")
	flag.StringVar(&codecName, "codec", "", "Codec: raw, cbor (overrides config)")
	flag.IntVar(&frameSize, "frame-size", 0, "Frame size in bytes (overrides config)")
	flag.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides config)")
	flag.BoolVar(&mdns, "mdns", false, "Advertise the server over mDNS")
	flag.Parse()

	cfg, err := LoadConfig(configFile)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Address = addr
	}
	if codecName != "" {
		cfg.Codec = codecName
	}
	if frameSize > 0 {
		cfg.FrameSize = frameSize
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if mdns {
		cfg.MDNS.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()})))

	codec, err := echoproto.Codec(cfg.Codec)
	if err != nil {
		return err
	}

	srv := newServer(cfg.Codec)
	listener := framesock.NewListener(srv.Handle,
		framesock.ListenerNameOption(cfg.Name),
		framesock.ListenerConnOptions(
			framesock.CustomCodecOption(codec),
			framesock.FrameSizeOption(cfg.FrameSize),
			framesock.MaxFailuresOption(cfg.MaxFailures),
			framesock.MaxConsecutiveFailuresOption(cfg.MaxConsecutiveFailures),
			framesock.WriteTimeoutOption(cfg.WriteTimeout),
			framesock.OnCloseOption(srv.deleteConn),
		),
	)

	if err := listener.Setup(cfg.Address, cfg.Backlog); err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := listener.Start(ctx); err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)
	group.Go(listener.Wait)

	if cfg.MDNS.Enabled {
		txt := []string{
			"codec=" + cfg.Codec,
			"frame=" + strconv.Itoa(cfg.FrameSize),
		}
		group.Go(func() error {
			return advertise(ctx, cfg.MDNS, listener.Port(), txt)
		})
	}

	<-ctx.Done()
	slog.Info("shutting down server...")
	srv.closeAll()
	_ = listener.Close()

	return group.Wait()
}
