// Command framesock-cli is an interactive client for framesock-echo.
// Each line typed is sent as one frame. In sync mode the client waits for
// the reply; in async mode replies are printed as they arrive.
//
// Commands:
//
//	/sync    wait for each reply (default)
//	/async   print replies from a background read
//	/quit    close the connection and exit
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/pkg/errors"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/internal/echoproto"
)

// drainPoll is how often a sync send checks whether a leftover async read finished.
const drainPoll = 5 * time.Millisecond

type client struct {
	conn      *framesock.Conn
	out       io.Writer
	errOut    io.Writer
	codecName string
	timeout   time.Duration
	async     bool
	seq       uint64
}

func newClient(conn *framesock.Conn, out, errOut io.Writer, codecName string, timeout time.Duration) *client {
	c := &client{conn: conn, out: out, errOut: errOut, codecName: codecName, timeout: timeout}
	conn.OnMessage(func(m framesock.Message) {
		fmt.Fprintln(c.out, "<", echoproto.Text(m))
	})
	return c
}

func main() {
	var (
		addr      string
		codecName string
		frameSize int
		timeout   time.Duration
	)
	flag.StringVar(&addr, "addr", "127.0.0.1:9400", "Server address")
	flag.StringVar(&codecName, "codec", "raw", "Codec: raw, cbor")
	flag.IntVar(&frameSize, "frame-size", 256, "Frame size in bytes")
	flag.DurationVar(&timeout, "timeout", 2*time.Second, "Reply timeout in sync mode")
	flag.Parse()

	if err := run(addr, codecName, frameSize, timeout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(addr, codecName string, frameSize int, timeout time.Duration) error {
	codec, err := echoproto.Codec(codecName)
	if err != nil {
		return err
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "framesock> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return errors.Wrap(err, "failed to create readline")
	}
	defer rl.Close()

	// Keep log output from tearing the prompt.
	slog.SetDefault(slog.New(slog.NewTextHandler(rl.Stderr(), &slog.HandlerOptions{Level: slog.LevelWarn})))

	raw, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return errors.Wrapf(err, "dial %s", addr)
	}

	conn, err := framesock.NewConn(raw,
		framesock.CustomCodecOption(codec),
		framesock.FrameSizeOption(frameSize),
		framesock.SyncTimeoutOption(timeout),
	)
	if err != nil {
		_ = raw.Close()
		return err
	}
	defer conn.Close()

	c := newClient(conn, rl.Stdout(), rl.Stderr(), codecName, timeout)

	fmt.Fprintf(rl.Stdout(), "connected to %s (frame %d bytes, codec %s)\n", conn.RemoteAddr(), frameSize, codecName)
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			return nil
		}
		if c.handle(line) {
			return nil
		}
	}
}

// handle runs one input line and reports whether the client should exit.
func (c *client) handle(line string) bool {
	input := strings.TrimSpace(line)
	switch input {
	case "":
		return false
	case "/quit":
		return true
	case "/async":
		if err := c.setAsync(true); err != nil {
			fmt.Fprintln(c.errOut, "async:", err)
		}
		return false
	case "/sync":
		if err := c.setAsync(false); err != nil {
			fmt.Fprintln(c.errOut, "sync:", err)
		}
		return false
	}

	if err := c.send(input); err != nil {
		if errors.Is(err, framesock.ErrConnectionClosed) {
			fmt.Fprintln(c.errOut, "connection closed")
			return true
		}
		fmt.Fprintln(c.errOut, "error:", err)
	}
	return false
}

// setAsync switches reply mode. Leaving async mode only stops re-arming;
// the read already armed completes with the next frame.
func (c *client) setAsync(async bool) error {
	if async == c.async {
		return nil
	}
	if err := c.conn.ReadAsync(async); err != nil {
		return err
	}
	c.async = async
	return nil
}

func (c *client) send(text string) error {
	// A read left armed by async mode takes the next reply through the callback.
	draining := !c.async && c.conn.State() == framesock.StateAsyncReading

	c.seq++
	if err := c.conn.Write(echoproto.New(c.codecName, c.seq, text)); err != nil {
		return err
	}
	if c.async {
		return nil
	}
	if draining {
		return c.waitDrained()
	}

	reply, err := c.conn.ReadSync(c.timeout)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "<", echoproto.Text(reply))
	return nil
}

// waitDrained blocks until the leftover async read has delivered its frame.
func (c *client) waitDrained() error {
	deadline := time.Now().Add(c.timeout)
	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for c.conn.State() == framesock.StateAsyncReading {
		if time.Now().After(deadline) {
			return errors.New("timed out waiting for reply")
		}
		<-ticker.C
	}
	if c.conn.IsClosed() {
		return framesock.ErrConnectionClosed
	}
	return nil
}
