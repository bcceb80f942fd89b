package framesock

import "io"

// accumulator collects the bytes of one fixed-size frame across any
// number of partial reads. It is owned by whichever read path holds the
// connection's read slot; it is never shared with the write path.
type accumulator struct {
	buf    []byte
	filled int
}

func newAccumulator(frameSize int) *accumulator {
	return &accumulator{buf: make([]byte, frameSize)}
}

// readFrom issues one read for exactly the missing part of the frame and
// reports whether the frame is now complete. A read returning zero bytes
// and no error leaves the accumulator untouched.
func (a *accumulator) readFrom(r io.Reader) (complete bool, err error) {
	n, err := r.Read(a.buf[a.filled:])
	if n > 0 {
		a.filled += n
	}
	return a.filled == len(a.buf), err
}

// frame returns the assembled frame. Only valid when complete.
func (a *accumulator) frame() []byte {
	return a.buf
}

// reset zeroes the buffer so no byte of a previous frame can leak into the next.
func (a *accumulator) reset() {
	clear(a.buf)
	a.filled = 0
}

// pending returns the number of bytes still missing from the current frame.
func (a *accumulator) pending() int {
	return len(a.buf) - a.filled
}

// buffered returns the number of bytes accumulated so far.
func (a *accumulator) buffered() int {
	return a.filled
}
