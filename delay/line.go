// Package delay aligns input channels whose upstream signal paths report
// different latencies. Each channel owns a Line; a Compensator keeps the
// lines' targets so that every channel ends up as late as the slowest one.
package delay

import (
	"errors"

	"github.com/viterin/vek/vek32"
	"github.com/vsariola/drawbar/ring"
)

// MaxFade is the longest crossfade, in samples, used when the delay changes.
const MaxFade = 16

// ErrDelayTooLong is returned when a requested delay does not fit the line.
var ErrDelayTooLong = errors.New("delay: requested delay exceeds the line capacity")

// Line delays one channel by an adjustable number of samples. Changes of the
// delay are applied at the start of the next processed block with a short
// linear crossfade from the old tap to the new one.
//
// Process allocates nothing and is meant to be called from the audio
// callback; all other methods must be called from that same goroutine.
type Line struct {
	buf      ring.Buffer[float32]
	pos      uint64 // absolute position of the next sample to be written
	delay    int    // delay currently applied
	target   int
	maxDelay int
	maxBlock int

	fadeIn, fadeOut [MaxFade + 1][MaxFade]float32 // ramps indexed by window length
	oldTap, newTap  [MaxFade]float32
}

// NewLine returns a line accepting delays up to maxDelay samples, processed
// in blocks of at most maxBlock samples. Longer blocks are split internally.
func NewLine(maxDelay, maxBlock int) *Line {
	maxBlock = max(maxBlock, 1)
	buf := ring.NewBuffer[float32](maxDelay + maxBlock + 1)
	l := &Line{
		buf: buf,
		// start one full lap in, so pos-delay never underflows; the zeroed
		// storage then reads as silence
		pos:      uint64(buf.Len()),
		maxDelay: buf.Len() - maxBlock - 1,
		maxBlock: maxBlock,
	}
	for f := 1; f <= MaxFade; f++ {
		for k := 0; k < f; k++ {
			g := float32(k+1) / float32(f)
			l.fadeIn[f][k] = g
			l.fadeOut[f][k] = 1 - g
		}
	}
	return l
}

// MaxDelay returns the largest delay SetTargetDelay accepts.
func (l *Line) MaxDelay() int { return l.maxDelay }

// Delay returns the delay currently applied, in samples.
func (l *Line) Delay() int { return l.delay }

// Target returns the delay the line is moving to.
func (l *Line) Target() int { return l.target }

// SetTargetDelay sets the delay to apply from the next block on. Requests
// outside [0, MaxDelay()] are rejected and leave the target unchanged.
func (l *Line) SetTargetDelay(samples int) error {
	if samples < 0 || samples > l.maxDelay {
		return ErrDelayTooLong
	}
	l.target = samples
	return nil
}

// Process writes in to the line and the delayed signal to out. in and out
// must have the same length and may be the same slice.
func (l *Line) Process(in, out []float32) {
	for len(in) > 0 {
		n := min(len(in), l.maxBlock)
		l.process(in[:n], out[:n])
		in, out = in[n:], out[n:]
	}
}

func (l *Line) process(in, out []float32) {
	n := len(in)
	// write first: with zero delay the output is the sample just written,
	// and the history is always recorded for later delay increases
	l.buf.Put(l.pos, in)
	i := 0
	if l.target != l.delay {
		f := min(MaxFade, n/2)
		if f > 0 {
			oldTap, newTap := l.oldTap[:f], l.newTap[:f]
			l.buf.Get(l.pos-uint64(l.delay), oldTap)
			l.buf.Get(l.pos-uint64(l.target), newTap)
			vek32.Mul_Inplace(oldTap, l.fadeOut[f][:f])
			vek32.Mul_Inplace(newTap, l.fadeIn[f][:f])
			vek32.Add_Into(out[:f], oldTap, newTap)
		}
		l.delay = l.target
		i = f
	}
	l.buf.Get(l.pos+uint64(i)-uint64(l.delay), out[i:n])
	l.pos += uint64(n)
}

// Reset forgets the history and snaps the applied delay to the target.
func (l *Line) Reset() {
	l.buf.Clear()
	l.delay = l.target
}
