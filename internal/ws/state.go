package ws

import "sync/atomic"

// ConnState represents the lifecycle stage of a stream connection.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateConnected
	// StateFailed means the transport broke. Err reports why.
	StateFailed
	StateClosed
)

func (s ConnState) String() string {
	return [...]string{
		"connecting",
		"connected",
		"failed",
		"closed",
	}[s]
}

// State provides atomic access to a ConnState value.
type State struct {
	state atomic.Int32
}

func (s *State) Load() ConnState {
	return ConnState(s.state.Load())
}

func (s *State) Store(state ConnState) {
	s.state.Store(int32(state))
}

// CompareAndSwap swaps to new if the current state is old.
func (s *State) CompareAndSwap(old, new ConnState) bool {
	return s.state.CompareAndSwap(int32(old), int32(new))
}
