package tonewheel

import (
	"math"

	"github.com/vsariola/drawbar"
)

const (
	tableBits = 12
	tableSize = 1 << tableBits

	vibratoSize = 512
	vibratoRate = 6.9 // Hz
	rotaryDepth = 0.35
	// seconds for the rotor to cover most of a speed change
	rotaryInertia = 0.8
)

var sineTable = func() (t [tableSize]float32) {
	for i := range t {
		t[i] = float32(math.Sin(2 * math.Pi * float64(i) / tableSize))
	}
	return t
}()

// sine looks up a 32-bit phase, where a full turn is 2^32.
func sine(phase uint32) float32 { return sineTable[phase>>(32-tableBits)] }

func phaseInc(freq, sampleRate float64) uint32 {
	if freq <= 0 || freq >= sampleRate/2 {
		return 0
	}
	return uint32(freq / sampleRate * (1 << 32))
}

type (
	// vibrato is a modulated delay line. Odd knob positions are the chorus
	// settings, which mix in the dry signal.
	vibrato struct {
		buf    [vibratoSize]float32
		pos    int
		phase  uint32
		inc    uint32
		depths [3]float32 // peak delay in samples for V1, V2, V3
	}

	rotary struct {
		phase uint32
		speed float64 // Hz
	}

	comb struct {
		buf   []float32
		pos   int
		store float32
	}

	allpass struct {
		buf []float32
		pos int
	}

	reverb struct {
		combs     [4]comb
		allpasses [2]allpass
	}
)

func (v *vibrato) init(sampleRate float64) {
	v.inc = phaseInc(vibratoRate, sampleRate)
	for i, ms := range [3]float64{0.4, 0.8, 1.4} {
		v.depths[i] = float32(min(ms/1000*sampleRate, vibratoSize-2))
	}
}

func (v *vibrato) process(x []float32, knob int) {
	knob = max(0, min(knob, 5))
	depth := v.depths[knob/2]
	chorus := knob%2 == 1
	for i, s := range x {
		v.buf[v.pos&(vibratoSize-1)] = s
		d := 1 + depth*(1+sine(v.phase))/2
		di := int(d)
		frac := d - float32(di)
		a := v.buf[(v.pos-di)&(vibratoSize-1)]
		b := v.buf[(v.pos-di-1)&(vibratoSize-1)]
		wet := a + (b-a)*frac
		if chorus {
			x[i] = (s + wet) / 2
		} else {
			x[i] = wet
		}
		v.pos++
		v.phase += v.inc
	}
}

// process pans the mono input around the listener, the speed of the rotor
// following target with some inertia.
func (r *rotary) process(in, left, right []float32, target, sampleRate float64) {
	r.speed += (target - r.speed) * (1 - math.Exp(-float64(len(in))/(sampleRate*rotaryInertia)))
	inc := phaseInc(r.speed, sampleRate)
	for i, x := range in {
		s := sine(r.phase) * rotaryDepth
		left[i] = x * (0.5 + s)
		right[i] = x * (0.5 - s)
		r.phase += inc
	}
}

func (c *comb) process(x float32) float32 {
	const feedback, damp = 0.84, 0.2
	y := c.buf[c.pos]
	c.store = y*(1-damp) + c.store*damp
	c.buf[c.pos] = x + c.store*feedback
	if c.pos++; c.pos == len(c.buf) {
		c.pos = 0
	}
	return y
}

func (a *allpass) process(x float32) float32 {
	b := a.buf[a.pos]
	a.buf[a.pos] = x + b/2
	if a.pos++; a.pos == len(a.buf) {
		a.pos = 0
	}
	return b - x
}

func (r *reverb) init(sampleRate float64) {
	scale := sampleRate / 44100
	for i, n := range [4]float64{1116, 1188, 1277, 1356} {
		r.combs[i] = comb{buf: make([]float32, int(n*scale))}
	}
	for i, n := range [2]float64{556, 441} {
		r.allpasses[i] = allpass{buf: make([]float32, int(n*scale))}
	}
}

// process mixes the reverberated signal into out. The tail keeps running
// when mix is zero so that turning the reverb up does not replay old sound.
func (r *reverb) process(out drawbar.AudioBuffer, mix float32) {
	if r.combs[0].buf == nil {
		return
	}
	for i := range out[0] {
		x := (out[0][i] + out[1][i]) * 0.015
		var acc float32
		for c := range r.combs {
			acc += r.combs[c].process(x)
		}
		for a := range r.allpasses {
			acc = r.allpasses[a].process(acc)
		}
		out[0][i] += (acc - out[0][i]) * mix
		out[1][i] += (acc - out[1][i]) * mix
	}
}
