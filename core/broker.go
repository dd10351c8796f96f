// Package core is the control plane of the organ: it connects the real-time
// audio callback (Processor) to the worker and observer goroutines (Session)
// through lock-free rings, and swaps reconfigured engine instances in without
// ever blocking the audio thread.
package core

import (
	"time"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/ring"
)

type (
	// Broker holds the rings connecting the audio thread to the other
	// goroutines. Each ring has exactly one producer and one consumer:
	//
	//	ToAudio, ParamsToAudio         session → audio
	//	FromAudio, ParamsFromAudio     audio → session
	//	UIParamsToAudio                remote UI → audio
	//	UIParamsFromAudio              audio → remote UI
	//	ToWorker                       audio → worker
	//	FromWorker                     worker → audio
	//
	// All writes from the audio thread are drop-on-full: a full ring means the
	// message is lost, never that the audio thread waits. The rings are sized
	// so that this does not happen as long as the consumers poll at least
	// every 40 ms (25 Hz) while the audio callback runs at up to 1000 cycles
	// per second.
	//
	// For closing goroutines, the broker has two channels for each goroutine:
	// CloseXXX and FinishedXXX. The CloseXXX channel has a capacity of 1, so
	// sending to it never blocks if done with TrySend; FinishedXXX is closed by
	// the goroutine when it has cleaned up.
	Broker struct {
		ToAudio           *ring.Ring
		ParamsToAudio     *ring.Ring
		FromAudio         *ring.Ring
		ParamsFromAudio   *ring.Ring
		UIParamsToAudio   *ring.Ring
		UIParamsFromAudio *ring.Ring
		ToWorker          *ring.Ring
		FromWorker        *ring.Ring

		CloseWorker      chan struct{}
		CloseObserver    chan struct{}
		FinishedWorker   chan struct{}
		FinishedObserver chan struct{}
	}
)

const (
	// ObserverPollInterval is how often the session drains the rings coming
	// from the audio thread.
	ObserverPollInterval = 30 * time.Millisecond
	// WorkerPollInterval is how often the worker checks for scheduled work.
	// The audio thread never signals the worker directly, as waking up a
	// goroutine takes a lock.
	WorkerPollInterval = 5 * time.Millisecond

	// a parameter can change at most once per cycle; 64 cycles of every
	// parameter changing fit in the control rings
	paramRingSize = int(drawbar.NumParams) * ring.ValueSize * 64
	atomRingSize  = 16 << 10
	// at most one request and one Free are ever in flight
	workRingSize = 4 << 10
)

func NewBroker() *Broker {
	return &Broker{
		ToAudio:           ring.New(atomRingSize),
		ParamsToAudio:     ring.New(paramRingSize),
		FromAudio:         ring.New(atomRingSize),
		ParamsFromAudio:   ring.New(paramRingSize),
		UIParamsToAudio:   ring.New(paramRingSize),
		UIParamsFromAudio: ring.New(paramRingSize),
		ToWorker:          ring.New(workRingSize),
		FromWorker:        ring.New(workRingSize),
		CloseWorker:       make(chan struct{}, 1),
		CloseObserver:     make(chan struct{}, 1),
		FinishedWorker:    make(chan struct{}),
		FinishedObserver:  make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}

// TimeoutReceive is a helper function to block until a value is received from a
// channel, or timing out after t. ok will be false if the timeout occurred or
// if the channel is closed.
func TimeoutReceive[T any](c <-chan T, t time.Duration) (v T, ok bool) {
	select {
	case v, ok = <-c:
		return v, ok
	case <-time.After(t):
		return v, false
	}
}
