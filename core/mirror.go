package core

import (
	"github.com/vsariola/drawbar/ring"
)

// Mirror is the last state of the parameters that an observer has been told
// about. Each cycle, Publish compares the parameters of the engine against it
// and writes the differences to the observer's ring.
type Mirror struct {
	values []float32
}

func NewMirror(values []float32) Mirror {
	return Mirror{values: append([]float32(nil), values...)}
}

// Values returns the mirrored values. The slice must not be modified.
func (m *Mirror) Values() []float32 { return m.values }

// Publish writes a {id, value} record for every parameter that differs from
// the mirror. A slot is updated only if its record was written: a dropped
// change stays different and is retried on the next call. It returns the
// number of dropped records.
func (m *Mirror) Publish(current []float32, out *ring.Ring) (dropped int) {
	n := min(len(current), len(m.values))
	for i := 0; i < n; i++ {
		v := current[i]
		if v == m.values[i] {
			continue
		}
		if !out.TryWriteValue(ring.Value{ID: uint32(i), Value: v}) {
			dropped++
			continue
		}
		m.values[i] = v
	}
	return dropped
}
