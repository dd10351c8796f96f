package oto

import (
	"encoding/binary"
	"math"

	"github.com/vsariola/drawbar"
)

// interleaveFloat32LE writes the frames of buf into dst as interleaved stereo
// float32 little-endian samples. dst must hold 8 bytes per frame.
func interleaveFloat32LE(dst []byte, buf drawbar.AudioBuffer) {
	for i := range buf.Len() {
		binary.LittleEndian.PutUint32(dst[i*8:], math.Float32bits(clip(buf[0][i])))
		binary.LittleEndian.PutUint32(dst[i*8+4:], math.Float32bits(clip(buf[1][i])))
	}
}

func clip(v float32) float32 {
	return max(-1, min(v, 1))
}
