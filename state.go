package framesock

// ConnState is the read/close state of a Conn.
type ConnState int32

const (
	// StateIdle indicates no read is in flight.
	StateIdle ConnState = iota

	// StateSyncReading indicates a blocking ReadSync is in progress.
	StateSyncReading

	// StateAsyncReading indicates an asynchronous read is armed.
	StateAsyncReading

	// StateClosing indicates the connection has been closed. Terminal.
	StateClosing
)

// String returns the connection state name.
func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateSyncReading:
		return "SYNC_READING"
	case StateAsyncReading:
		return "ASYNC_READING"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN"
	}
}

// ListenerState is the lifecycle state of a Listener.
type ListenerState int32

const (
	// ListenerUnbound indicates Setup has not succeeded yet.
	ListenerUnbound ListenerState = iota

	// ListenerBound indicates the socket is bound but not listening.
	ListenerBound

	// ListenerListening indicates the accept loop is running.
	ListenerListening

	// ListenerClosed indicates the listener was closed.
	ListenerClosed
)

// String returns the listener state name.
func (s ListenerState) String() string {
	switch s {
	case ListenerUnbound:
		return "UNBOUND"
	case ListenerBound:
		return "BOUND"
	case ListenerListening:
		return "LISTENING"
	case ListenerClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
