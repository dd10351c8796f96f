package main

import (
	"fmt"
	"os"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
)

const renderBlock = 1024

// chord is played on the upper manual (C major) and the pedals (C).
var chord = [][2]byte{{0x90, 60}, {0x90, 64}, {0x90, 67}, {0x92, 36}}

// renderChord renders a chord held for all but the last half second of the
// given length, so that the release is heard too.
func renderChord(p *core.Processor, sampleRate int, seconds float64) drawbar.AudioBuffer {
	frames := int(seconds * float64(sampleRate))
	release := max(frames-sampleRate/2, frames/2)
	out := drawbar.MakeAudioBuffer(frames)
	var q core.EventQueue
	for start := 0; start < frames; start += renderBlock {
		end := min(start+renderBlock, frames)
		if start == 0 {
			for _, n := range chord {
				q.Add(core.MakeMIDIEvent(0, []byte{n[0], n[1], 100}))
			}
		}
		if release >= start && release < end {
			for _, n := range chord {
				q.Add(core.MakeMIDIEvent(release-start, []byte{n[0] - 0x10, n[1], 0}))
			}
		}
		p.Process(drawbar.AudioBuffer{}, out.Slice(start, end), &q)
	}
	return out
}

func render(p *core.Processor, sampleRate int, seconds float64, output string) error {
	wav, err := drawbar.Wav(renderChord(p, sampleRate, seconds), sampleRate, false)
	if err != nil {
		return fmt.Errorf("could not generate .wav file: %w", err)
	}
	if err := os.WriteFile(output, wav, 0644); err != nil {
		return fmt.Errorf("could not write file %v: %w", output, err)
	}
	return nil
}
