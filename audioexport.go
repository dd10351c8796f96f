package drawbar

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// Wav encodes the buffer as a stereo .wav file, either as 16-bit integers
// (pcm16 = true) or as 32-bit floats.
func Wav(buffer AudioBuffer, sampleRate int, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	wavHeader(2*buffer.Len(), sampleRate, pcm16, buf)
	if err := rawToBuffer(buffer, pcm16, buf); err != nil {
		return nil, fmt.Errorf("Wav failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Raw encodes the buffer as interleaved little-endian samples without any
// header.
func Raw(buffer AudioBuffer, pcm16 bool) ([]byte, error) {
	buf := new(bytes.Buffer)
	if err := rawToBuffer(buffer, pcm16, buf); err != nil {
		return nil, fmt.Errorf("Raw failed: %w", err)
	}
	return buf.Bytes(), nil
}

// Interleave appends the frames of the buffer to dst as L, R, L, R...
func Interleave(dst []float32, buffer AudioBuffer) []float32 {
	for i := 0; i < buffer.Len(); i++ {
		dst = append(dst, buffer[0][i], buffer[1][i])
	}
	return dst
}

func rawToBuffer(buffer AudioBuffer, pcm16 bool, buf *bytes.Buffer) error {
	data := Interleave(make([]float32, 0, 2*buffer.Len()), buffer)
	var err error
	if pcm16 {
		int16data := make([]int16, len(data))
		for i, v := range data {
			int16data[i] = int16(clamp(int(v*math.MaxInt16), math.MinInt16, math.MaxInt16))
		}
		err = binary.Write(buf, binary.LittleEndian, int16data)
	} else {
		err = binary.Write(buf, binary.LittleEndian, data)
	}
	if err != nil {
		return fmt.Errorf("could not binary write data to binary buffer: %w", err)
	}
	return nil
}

// wavHeader writes a wave header for either float32 or int16 .wav file into the
// bytes.buffer. samples is the total number of samples, over both channels.
// Refer to: http://www-mmsp.ece.mcgill.ca/Documents/AudioFormats/WAVE/WAVE.html
func wavHeader(samples, sampleRate int, pcm16 bool, buf *bytes.Buffer) {
	const numChannels = 2
	var bytesPerSample, chunkSize, fmtChunkSize, waveFormat int
	if pcm16 {
		bytesPerSample = 2
		chunkSize = 36 + bytesPerSample*samples
		fmtChunkSize = 16
		waveFormat = 1 // PCM
	} else {
		bytesPerSample = 4
		chunkSize = 50 + bytesPerSample*samples
		fmtChunkSize = 18
		waveFormat = 3 // IEEE float
	}
	w := func(v any) { binary.Write(buf, binary.LittleEndian, v) }
	buf.WriteString("RIFF")
	w(uint32(chunkSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	w(uint32(fmtChunkSize))
	w(uint16(waveFormat))
	w(uint16(numChannels))
	w(uint32(sampleRate))
	w(uint32(sampleRate * numChannels * bytesPerSample)) // avgBytesPerSec
	w(uint16(numChannels * bytesPerSample))              // blockAlign
	w(uint16(8 * bytesPerSample))                        // bits per sample
	if !pcm16 {
		w(uint16(0)) // size of extension
		buf.WriteString("fact")
		w(uint32(4))
		w(uint32(samples / numChannels)) // sample frames
	}
	buf.WriteString("data")
	w(uint32(bytesPerSample * samples))
}

func clamp(value, min, max int) int {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
