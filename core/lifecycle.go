package core

import (
	"fmt"
	"sync/atomic"
)

type (
	// Lifecycle tracks the instances of the engine. There is always one live
	// instance, used by the audio thread only. A reconfiguration builds an
	// offline instance on the worker; the audio thread then swaps it in at
	// the start of a cycle, and the retired instance is freed by the worker.
	//
	//	Idle → Building       Begin, by the requester
	//	Building → Pending    Offer, by the worker once the instance is ready
	//	Pending → Idle        swap, by the audio thread
	//	Building → Idle       the request completed without a swap
	//
	// Only one build may be in flight: Begin fails unless Idle.
	Lifecycle struct {
		state   atomic.Int32
		live    atomic.Pointer[Instance]
		offline atomic.Pointer[Instance]
		retired atomic.Pointer[Instance]
		swaps   atomic.Uint64
	}

	LifecycleState int32
)

const (
	Idle LifecycleState = iota
	Building
	PendingSwap
)

func (s LifecycleState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Building:
		return "building"
	case PendingSwap:
		return "pending swap"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func NewLifecycle(live *Instance) *Lifecycle {
	l := &Lifecycle{}
	l.live.Store(live)
	return l
}

func (l *Lifecycle) State() LifecycleState { return LifecycleState(l.state.Load()) }

// Swaps returns the number of swaps done so far.
func (l *Lifecycle) Swaps() uint64 { return l.swaps.Load() }

// Live returns the live instance. Only the audio thread may use it; others
// may only read its immutable parts, like the ID or the program table.
func (l *Lifecycle) Live() *Instance { return l.live.Load() }

// Begin starts a request. It fails if another request is in flight.
func (l *Lifecycle) Begin() bool {
	return l.state.CompareAndSwap(int32(Idle), int32(Building))
}

// abort ends a request that never reached the worker.
func (l *Lifecycle) abort() {
	l.state.CompareAndSwap(int32(Building), int32(Idle))
}

// Offer hands a fully initialized instance to the audio thread.
func (l *Lifecycle) Offer(inst *Instance) {
	l.offline.Store(inst)
	l.state.Store(int32(PendingSwap))
}

// swap replaces the live instance with the offered one. The previous live
// instance becomes retired, to be freed by the worker. It returns nil if
// nothing was offered.
func (l *Lifecycle) swap() (next, prev *Instance) {
	next = l.offline.Swap(nil)
	if next == nil {
		return nil, nil
	}
	prev = l.live.Swap(next)
	l.retired.Store(prev)
	l.swaps.Add(1)
	return next, prev
}

// finish ends the request in flight.
func (l *Lifecycle) finish() { l.state.Store(int32(Idle)) }

// TakeRetired returns the retired instance, if any, and forgets it.
func (l *Lifecycle) TakeRetired() *Instance { return l.retired.Swap(nil) }

// takeOffline returns an offered instance that was never swapped in.
func (l *Lifecycle) takeOffline() *Instance { return l.offline.Swap(nil) }
