package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

func (s *Session) runObserver() {
	defer close(s.broker.FinishedObserver)
	t := time.NewTicker(ObserverPollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.broker.CloseObserver:
			s.poll()
			return
		case <-t.C:
			s.poll()
		}
	}
}

// poll drains the rings coming from the audio thread into the observable
// copy of the live instance and the running state.
func (s *Session) poll() {
	var buf [maxAtomSize]byte
	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		v, ok := s.broker.ParamsFromAudio.ReadValue()
		if !ok {
			break
		}
		s.paramChanged(drawbar.ParamID(v.ID), v.Value)
	}
	for {
		rec, ok := s.broker.FromAudio.ReadRecord(buf[:])
		if !ok {
			break
		}
		if rec.Truncated {
			s.logger.Error("truncated message from audio thread", "kind", rec.Kind)
			continue
		}
		switch AtomKind(rec.Kind) {
		case AtomChange:
			if c, ok := decodeChange(rec.Payload); ok {
				s.bindingChanged(c)
			}
		case AtomSwapped:
			if id, ok := decodeID(rec.Payload); ok {
				s.swapped(id)
			}
		case AtomStatus:
			var item WorkItem
			if item.decode(rec.Payload) {
				s.completed(item)
			}
		case AtomLatencyRejected:
			if l, ok := decodeLatency(rec.Payload); ok {
				s.alert(AlertLatency, Warning, "latency of %d frames on input %d exceeds the maximum of %d", l.Samples, l.Port, s.opts.MaxDelay)
			}
		default:
			s.logger.Error("unexpected message from audio thread", "kind", rec.Kind)
		}
	}
	if d := s.processor.Dropped(); d > s.dropped {
		s.alert(AlertDropped, Warning, "audio thread dropped %d messages", d-s.dropped)
		s.dropped = d
	}
}

func (s *Session) paramChanged(id drawbar.ParamID, value float32) {
	if !id.Valid() || int(id) >= len(s.params) {
		return
	}
	s.params[id] = value
	info := drawbar.Params[id]
	if info.Output {
		return
	}
	if f := info.Format(value); f != s.factoryCfg[info.Name] {
		s.state.Set(info.Name, f)
	} else {
		s.state.Delete(info.Name)
	}
}

func (s *Session) bindingChanged(c midicc.Change) {
	if !c.Manual.Valid() || c.Control > 127 {
		return
	}
	switch c.Kind {
	case midicc.ChangeValue:
		if c.Function.Valid() {
			s.values[c.Function] = int16(c.Value)
		}
		return
	case midicc.ChangeBound:
		s.bindings.slots[c.Manual][c.Control] = c.Binding
		s.bindings.bound[c.Manual][c.Control] = true
	case midicc.ChangeUnbound:
		s.bindings.slots[c.Manual][c.Control] = midicc.Binding{}
		s.bindings.bound[c.Manual][c.Control] = false
	default:
		return
	}
	s.recordBinding(c.Manual, c.Control, s.controllersReset())
}

// recordBinding updates the running state to the observed binding of a
// controller.
func (s *Session) recordBinding(m midicc.Manual, cc uint8, reset bool) {
	key := midicc.Key(m, cc)
	value := midicc.UnmapValue
	if s.bindings.bound[m][cc] {
		value = s.bindings.slots[m][cc].ConfigValue()
	}
	if value == s.baselineOf(key, reset) {
		s.state.Delete(key)
	} else {
		s.state.Set(key, value)
	}
}

// swapped switches the observed bindings to the table the new instance was
// built with and rewrites the controller assignments of the running state
// from it. Bindings carried over from the old instance follow as changes.
func (s *Session) swapped(id uuid.UUID) {
	s.instanceID = id
	for i := range s.values {
		s.values[i] = -1
	}
	t, ok := s.built[id]
	if !ok {
		s.logger.Warn("swapped to an unknown instance", "instance", s.instanceID)
		return
	}
	delete(s.built, id)
	s.bindings = t
	s.state.Filter(func(l drawbar.ConfigLine) bool {
		return !strings.HasPrefix(l.Key, midicc.ControllerPrefix) || l.Key == midicc.ResetKey
	})
	reset := s.controllersReset()
	for m := range midicc.NumManuals {
		for cc := range uint8(128) {
			s.recordBinding(m, cc, reset)
		}
	}
	s.logger.Debug("instance swapped", "instance", s.instanceID)
}

func (s *Session) completed(item WorkItem) {
	switch {
	case item.Status == StatusOK:
		s.alert(AlertRequestDone, Info, "%s", item.Message())
	case item.Command == CommandLoadConfig || item.Command == CommandLoadProgram:
		s.alert(AlertLoadFailed, Error, "%s", item.Message())
	case item.Command == CommandSaveConfig || item.Command == CommandSaveProgram:
		s.alert(AlertSaveFailed, Error, "%s", item.Message())
	default:
		s.alert(AlertRequestError, Error, "%s failed: %s", item.Command, item.Message())
	}
	for !TrySend(s.done, item) {
		// nobody waits for the oldest completions
		select {
		case <-s.done:
		default:
		}
	}
}
