// Package oto plays the organ through the default audio device.
package oto

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/vsariola/drawbar"
)

type (
	OtoContext struct {
		context    *oto.Context
		sampleRate int
	}

	// source is the io.Reader oto pulls audio from, on its own thread.
	source struct {
		render func(buf drawbar.AudioBuffer)
		buf    drawbar.AudioBuffer
	}

	OtoOutput struct {
		player *oto.Player
	}
)

const (
	bytesPerFrame = 8
	blockSize     = 256
	bufferLength  = 20 * time.Millisecond
)

// NewContext opens the audio device. oto allows only one context per process.
func NewContext(sampleRate int) (*OtoContext, error) {
	context, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferLength,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &OtoContext{context: context, sampleRate: sampleRate}, nil
}

func (c *OtoContext) SampleRate() int { return c.sampleRate }

// Play starts pulling audio from render until the returned Closer is closed.
func (c *OtoContext) Play(render func(buf drawbar.AudioBuffer)) io.Closer {
	s := &source{render: render, buf: drawbar.MakeAudioBuffer(blockSize)}
	player := c.context.NewPlayer(s)
	player.SetBufferSize(int(bufferLength.Seconds()*float64(c.sampleRate)) * bytesPerFrame)
	player.Play()
	return &OtoOutput{player: player}
}

// Close suspends the device; oto contexts cannot be released.
func (c *OtoContext) Close() error {
	if err := c.context.Suspend(); err != nil {
		return fmt.Errorf("cannot suspend oto context: %w", err)
	}
	return nil
}

func (s *source) Read(p []byte) (int, error) {
	frames := len(p) / bytesPerFrame
	for done := 0; done < frames; {
		n := min(frames-done, blockSize)
		buf := s.buf.Slice(0, n)
		s.render(buf)
		interleaveFloat32LE(p[done*bytesPerFrame:], buf)
		done += n
	}
	return frames * bytesPerFrame, nil
}

func (o *OtoOutput) Close() error {
	if err := o.player.Close(); err != nil {
		return fmt.Errorf("cannot close oto player: %w", err)
	}
	return nil
}
