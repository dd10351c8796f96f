// Package gomidi feeds MIDI input from the gomidi drivers to the processor.
package gomidi

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/ring"
	"gitlab.com/gomidi/midi/v2"
)

const (
	maxPending = 1024
	ringSize   = 16 * 1024
	// frame stamp followed by the message
	payloadSize = 8 + 3
)

// Input is a core.ProcessContext of timestamped messages received from a
// driver. HandleMessage is called by the driver goroutine, NextEvent and
// FinishBlock by the audio thread; the two sides meet in a ring.
//
// The timestamps of the driver and the frames of the audio device run on
// different clocks. Input keeps the offset between the two, nudging it a
// fifth of the way towards the observed error on every block, so that events
// are rendered with the spacing they were played with.
type Input struct {
	ring       *ring.Ring
	sampleRate int64
	dropped    atomic.Uint64

	pending       [maxPending]core.MIDIEvent // Frame is the driver frame
	n, index      int
	startFrame    int
	startFrameSet bool
	rec           [payloadSize]byte
}

func NewInput(sampleRate int) *Input {
	return &Input{ring: ring.New(ringSize), sampleRate: int64(sampleRate)}
}

// HandleMessage has the signature of the midi.ListenTo callback. System
// exclusive and other long messages are ignored.
func (c *Input) HandleMessage(msg midi.Message, timestampms int32) {
	if len(msg) == 0 || len(msg) > 3 || msg[0] == 0xF0 {
		return
	}
	var b [payloadSize]byte
	binary.LittleEndian.PutUint64(b[:], uint64(int64(timestampms)*c.sampleRate/1000))
	n := copy(b[8:], msg)
	if !c.ring.TryWriteRecord(0, b[:8+n]) {
		c.dropped.Add(1)
	}
}

// Dropped counts the messages lost because the audio thread fell behind.
func (c *Input) Dropped() uint64 { return c.dropped.Load() }

func (c *Input) receive() {
	for c.n < len(c.pending) {
		rec, ok := c.ring.ReadRecord(c.rec[:])
		if !ok {
			return
		}
		if len(rec.Payload) < 8 {
			continue
		}
		frame := int(int64(binary.LittleEndian.Uint64(rec.Payload)))
		c.pending[c.n] = core.MakeMIDIEvent(frame, rec.Payload[8:])
		c.n++
		if !c.startFrameSet {
			c.startFrame = frame
			c.startFrameSet = true
		}
	}
}

func (c *Input) NextEvent(frame int) (core.MIDIEvent, bool) {
	c.receive()
	if c.index > 0 {
		// the processor only consumes an event once it has rendered up to
		// it, so a positive delta means the event was rendered late
		delta := frame + c.startFrame - c.pending[c.index-1].Frame
		c.startFrame -= delta / 5
	}
	if c.index < c.n {
		ev := c.pending[c.index]
		ev.Frame -= c.startFrame
		c.index++
		return ev, true
	}
	c.index = c.n + 1
	return core.MIDIEvent{}, false
}

func (c *Input) FinishBlock(frame int) {
	c.startFrame += frame
	if c.index > 0 {
		// the last event handed out was beyond the block; keep it
		kept := copy(c.pending[:], c.pending[c.index-1:c.n])
		c.n = kept
		if c.n > 0 {
			// pull the clock towards the future events; delta is negative
			delta := c.startFrame - c.pending[0].Frame
			c.startFrame -= delta / 5
		}
	}
	c.index = 0
}
