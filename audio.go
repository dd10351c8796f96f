package drawbar

import "io"

type (
	// AudioContext is an audio output device. Play starts calling render
	// from the audio thread of the device whenever more audio is needed,
	// until the returned Closer is closed. render must fill the buffer
	// completely.
	AudioContext interface {
		Play(render func(buf AudioBuffer)) io.Closer
		SampleRate() int
		Close() error
	}
)
