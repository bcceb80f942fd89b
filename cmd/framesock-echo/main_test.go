package main

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Zereker/framesock"
	"github.com/Zereker/framesock/internal/echoproto"
)

func startEcho(t *testing.T, codecName string) (*server, *framesock.Listener) {
	t.Helper()

	c, err := echoproto.Codec(codecName)
	require.NoError(t, err)

	srv := newServer(codecName)
	l := framesock.NewListener(srv.Handle,
		framesock.ListenerConnOptions(
			framesock.CustomCodecOption(c),
			framesock.FrameSizeOption(64),
			framesock.OnCloseOption(srv.deleteConn),
		),
	)
	require.NoError(t, l.Setup("127.0.0.1:0", 0))
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { l.Close() })

	return srv, l
}

func dialEcho(t *testing.T, l *framesock.Listener, codecName string) *framesock.Conn {
	t.Helper()

	c, err := echoproto.Codec(codecName)
	require.NoError(t, err)

	raw, err := net.Dial("tcp", l.Addr().String())
	require.NoError(t, err)

	conn, err := framesock.NewConn(raw, framesock.CustomCodecOption(c), framesock.FrameSizeOption(64))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (s *server) count() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.connections)
}

func TestServer_Echo(t *testing.T) {
	for _, codecName := range []string{echoproto.CodecRaw, echoproto.CodecCBOR} {
		t.Run(codecName, func(t *testing.T) {
			_, l := startEcho(t, codecName)
			conn := dialEcho(t, l, codecName)

			for seq := uint64(1); seq <= 3; seq++ {
				sent := echoproto.New(codecName, seq, "hello")
				require.NoError(t, conn.Write(sent))

				reply, err := conn.ReadSync(2 * time.Second)
				require.NoError(t, err)
				assert.Equal(t, echoproto.Text(sent), echoproto.Text(reply))
			}
		})
	}
}

func TestServer_TracksConnections(t *testing.T) {
	srv, l := startEcho(t, echoproto.CodecRaw)

	conn := dialEcho(t, l, echoproto.CodecRaw)
	require.Eventually(t, func() bool { return srv.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return srv.count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestServer_CloseAll(t *testing.T) {
	srv, l := startEcho(t, echoproto.CodecRaw)

	conn := dialEcho(t, l, echoproto.CodecRaw)
	require.Eventually(t, func() bool { return srv.count() == 1 }, 2*time.Second, 10*time.Millisecond)

	srv.closeAll()

	reply, err := conn.ReadSync(2 * time.Second)
	require.NoError(t, err)
	assert.Equal(t, "server shutting down", echoproto.Text(reply))
	assert.Eventually(t, func() bool { return srv.count() == 0 }, 2*time.Second, 10*time.Millisecond)
}
