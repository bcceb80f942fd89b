package framesock

import (
	"bytes"
	"io"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader returns its chunks one per Read call.
type chunkReader struct {
	chunks [][]byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.chunks) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[0])
	if n < len(r.chunks[0]) {
		r.chunks[0] = r.chunks[0][n:]
	} else {
		r.chunks = r.chunks[1:]
	}
	return n, nil
}

func TestAccumulator_SingleRead(t *testing.T) {
	acc := newAccumulator(4)

	complete, err := acc.readFrom(bytes.NewReader([]byte("abcd")))
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte("abcd"), acc.frame())
	assert.Equal(t, 0, acc.pending())
}

func TestAccumulator_PartialReads(t *testing.T) {
	acc := newAccumulator(6)
	r := iotest.OneByteReader(bytes.NewReader([]byte("abcdefgh")))

	for i := 0; i < 5; i++ {
		complete, err := acc.readFrom(r)
		require.NoError(t, err)
		assert.False(t, complete)
		assert.Equal(t, i+1, acc.buffered())
		assert.Equal(t, 6-i-1, acc.pending())
	}

	complete, err := acc.readFrom(r)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte("abcdef"), acc.frame())
}

func TestAccumulator_NeverReadsPastFrame(t *testing.T) {
	acc := newAccumulator(4)
	r := bytes.NewReader([]byte("abcdefgh"))

	complete, err := acc.readFrom(r)
	require.NoError(t, err)
	require.True(t, complete)
	assert.Equal(t, 4, r.Len())

	acc.reset()
	complete, err = acc.readFrom(r)
	require.NoError(t, err)
	require.True(t, complete)
	assert.Equal(t, []byte("efgh"), acc.frame())
}

func TestAccumulator_EmptyRead(t *testing.T) {
	acc := newAccumulator(4)
	r := &chunkReader{chunks: [][]byte{{}, []byte("ab"), {}, []byte("cd")}}

	var complete bool
	var err error
	for reads := 0; !complete; reads++ {
		require.Less(t, reads, 4)
		complete, err = acc.readFrom(r)
		require.NoError(t, err)
	}
	assert.Equal(t, []byte("abcd"), acc.frame())
}

func TestAccumulator_ErrorKeepsPartialFrame(t *testing.T) {
	acc := newAccumulator(4)

	complete, err := acc.readFrom(iotest.DataErrReader(bytes.NewReader([]byte("ab"))))
	assert.False(t, complete)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 2, acc.buffered())
}

func TestAccumulator_ResetZeroes(t *testing.T) {
	acc := newAccumulator(4)

	_, err := acc.readFrom(bytes.NewReader([]byte("wxyz")))
	require.NoError(t, err)

	acc.reset()
	assert.Equal(t, 0, acc.buffered())
	assert.Equal(t, make([]byte, 4), acc.buf)

	// A short next frame must not expose bytes from the previous one.
	_, err = acc.readFrom(bytes.NewReader([]byte("q")))
	require.NoError(t, err)
	assert.Equal(t, []byte{'q', 0, 0, 0}, acc.buf)
}
