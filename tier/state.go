package tier

import "sync/atomic"

// State is one node of the shared tier state machine (§4.2.1):
//
//	Loading -> Ready -> (Idle <-> Busy) -> Terminated
type State int32

const (
	StateLoading State = iota
	StateReady
	StateIdle
	StateBusy
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateIdle:
		return "idle"
	case StateBusy:
		return "busy"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// stateBox is an atomically-readable state cell. Audio is accepted in any
// state; only Ready/Idle start new inference (§4.2.1). Reads happen from
// the Orchestrator and from status reporting, writes only from the
// worker's own loop goroutine, so a simple atomic value is enough --
// no separate lock is needed the way the DraftBuffer needs one (§5).
type stateBox struct {
	v atomic.Int32
}

func (b *stateBox) set(s State) { b.v.Store(int32(s)) }
func (b *stateBox) get() State  { return State(b.v.Load()) }

// canFire reports whether inference may be attempted from the current
// state (Ready or Idle only, §4.2.1).
func (s State) canFire() bool {
	return s == StateReady || s == StateIdle
}
