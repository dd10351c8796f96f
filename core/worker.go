package core

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/midicc"
)

// requestFile tags the configuration line of a SetConfigLine request in
// diagnostics.
const requestFile = "request"

func (s *Session) runWorker() {
	defer close(s.broker.FinishedWorker)
	t := time.NewTicker(WorkerPollInterval)
	defer t.Stop()
	for {
		select {
		case <-s.broker.CloseWorker:
			return
		case <-t.C:
			s.drainWork()
		}
	}
}

func (s *Session) drainWork() {
	var in, out [workItemSize]byte
	for {
		rec, ok := s.broker.ToWorker.ReadRecord(in[:])
		if !ok {
			return
		}
		var item WorkItem
		if rec.Truncated || AtomKind(rec.Kind) != AtomWork || !item.decode(rec.Payload) {
			s.logger.Error("malformed work item", "kind", rec.Kind, "size", len(rec.Payload))
			continue
		}
		if item.Command == CommandFree {
			if inst := s.lifecycle.TakeRetired(); inst != nil {
				inst.Close()
				s.logger.Debug("instance freed", "instance", inst.ID)
			}
			continue
		}
		// what the audio thread reported before the request is in the state
		// before it is snapshotted; later changes are carried over at swap
		s.poll()
		start := time.Now()
		s.work(&item)
		s.logger.Info("request completed", "command", item.Command, "status", item.Status, "message", item.Message(), "took", time.Since(start))
		if !s.broker.FromWorker.TryWriteRecord(uint32(AtomWork), item.encode(&out)) {
			// the audio thread never sees the result; undo the request here
			s.logger.Error("cannot respond to audio thread", "command", item.Command)
			if inst := s.lifecycle.takeOffline(); inst != nil {
				inst.Close()
			}
			s.lifecycle.finish()
		}
	}
}

// work carries out a request. Commands that reconfigure leave the new
// instance offered to the audio thread on success.
func (s *Session) work(item *WorkItem) {
	arg := item.Message()
	switch item.Command {
	case CommandReset:
		s.mu.Lock()
		restore, restoring := s.restore, s.hasRestore
		s.restore, s.hasRestore = nil, false
		s.mu.Unlock()
		var st State
		st.Append(restore...)
		if !s.offer(item, st.Lines()) {
			return
		}
		s.mu.Lock()
		s.state = st
		s.mu.Unlock()
		if restoring {
			item.Complete(StatusOK, "state restored (%d assignments)", st.Len())
		} else {
			item.Complete(StatusOK, "reset to factory configuration")
		}
	case CommandLoadConfig:
		lines, diags, err := drawbar.LoadConfigFile(arg)
		if err != nil {
			item.Complete(StatusFailed, "load failed: %v", err)
			return
		}
		s.reportDiagnostics(diags)
		if s.extend(item, lines) {
			item.Complete(StatusOK, "loaded %s", arg)
		}
	case CommandLoadProgram:
		path, err := filepath.Abs(arg)
		if err == nil {
			_, _, err = drawbar.LoadProgramFile(path)
		}
		if err != nil {
			item.Complete(StatusFailed, "load failed: %v", err)
			return
		}
		if s.extend(item, []drawbar.ConfigLine{{Key: drawbar.ProgramKey, Value: path}}) {
			item.Complete(StatusOK, "loaded programs from %s", arg)
		}
	case CommandSetConfigLine:
		l, ok, err := drawbar.ParseConfigLine(arg)
		if err == nil && !ok {
			err = errors.New("empty configuration line")
		}
		if err != nil {
			item.Complete(StatusFailed, "%v", err)
			return
		}
		if l.Key == drawbar.IncludeKey {
			seq := item.Seq
			*item = NewWorkItem(CommandLoadConfig, l.Value)
			s.work(item)
			item.Command, item.Seq = CommandSetConfigLine, seq
			return
		}
		l.File, l.Line = requestFile, 1
		if s.extend(item, []drawbar.ConfigLine{l}) {
			item.Complete(StatusOK, "%s", l)
		}
	case CommandSaveConfig:
		var lines []drawbar.ConfigLine
		s.mu.Lock()
		lines = s.state.Lines()
		s.mu.Unlock()
		err := writeFile(arg, func(f *os.File) error {
			return drawbar.WriteConfig(f, lines, "drawbar running state, saved "+time.Now().Format(time.DateTime))
		})
		if err != nil {
			item.Complete(StatusFailed, "save failed: %v", err)
			return
		}
		item.Complete(StatusOK, "saved %d assignments to %s", len(lines), arg)
	case CommandSaveProgram:
		table := s.Programs()
		if err := writeFile(arg, func(f *os.File) error { return table.Format(f) }); err != nil {
			item.Complete(StatusFailed, "save failed: %v", err)
			return
		}
		item.Complete(StatusOK, "saved %d programs to %s", len(table.Programs), arg)
	case CommandPurge:
		s.mu.Lock()
		reset := s.controllersReset()
		n := s.state.Filter(func(l drawbar.ConfigLine) bool {
			return l.Key == drawbar.ProgramKey || l.Key == midicc.ResetKey || l.Value != s.baselineOf(l.Key, reset)
		})
		s.mu.Unlock()
		item.Complete(StatusOK, "purged %d assignments", n)
	default:
		item.Complete(StatusFailed, "unknown command %v", item.Command)
	}
}

// extend builds an instance from the running state followed by lines, and on
// success adds lines to the running state, leaving out the lines that were
// skipped as erroneous. An erroneous line of a SetConfigLine request fails
// the request instead.
func (s *Session) extend(item *WorkItem, lines []drawbar.ConfigLine) bool {
	s.mu.Lock()
	state := s.state.Lines()
	s.mu.Unlock()
	inst, diags, err := s.build(append(state, lines...))
	if err != nil {
		item.Complete(StatusFailed, "%v", err)
		return false
	}
	for _, d := range diags {
		if d.File == requestFile {
			inst.Close()
			item.Complete(StatusFailed, "%v", d.Err)
			return false
		}
	}
	s.lifecycle.Offer(inst)
	s.mu.Lock()
	for _, l := range lines {
		if l.File == "" || !hasDiagnostic(diags, l) {
			s.state.Set(l.Key, l.Value)
		}
	}
	s.mu.Unlock()
	return true
}

// offer builds an instance from the running state given and offers it to
// the audio thread.
func (s *Session) offer(item *WorkItem, state []drawbar.ConfigLine) bool {
	inst, _, err := s.build(state)
	if err != nil {
		item.Complete(StatusFailed, "%v", err)
		return false
	}
	s.lifecycle.Offer(inst)
	return true
}

// build configures a new instance from the base configuration followed by
// state, and records its binding table for the observer.
func (s *Session) build(state []drawbar.ConfigLine) (*Instance, drawbar.ConfigErrors, error) {
	lines := append(slices.Clone(s.opts.Base), state...)
	inst, diags, err := NewInstance(s.factory, s.instanceConfig(), lines)
	s.reportDiagnostics(diags)
	if err != nil {
		return nil, diags, err
	}
	s.mu.Lock()
	s.built[inst.ID] = tableOf(inst.Registry)
	s.programs = inst.Programs
	s.mu.Unlock()
	s.logger.Debug("instance built", "instance", inst.ID, "assignments", len(lines), "diagnostics", len(diags))
	return inst, diags, nil
}

// baselineOf returns the value a key has without any running state, or
// with only the controller tables cleared if reset is set.
func (s *Session) baselineOf(key string, reset bool) string {
	if !strings.HasPrefix(key, midicc.ControllerPrefix) || key == midicc.ResetKey {
		return s.factoryCfg[key]
	}
	if reset {
		return midicc.UnmapValue
	}
	if v, ok := s.factoryCfg[key]; ok {
		return v
	}
	return midicc.UnmapValue
}

// controllersReset reports whether the running state clears the controller
// tables. Called with s.mu held.
func (s *Session) controllersReset() bool {
	v, ok := s.state.Get(midicc.ResetKey)
	return ok && isYes(v)
}

func isYes(v string) bool {
	switch strings.ToLower(v) {
	case "yes", "true", "1":
		return true
	}
	return false
}

func hasDiagnostic(diags drawbar.ConfigErrors, l drawbar.ConfigLine) bool {
	for _, d := range diags {
		if d.File == l.File && d.Line == l.Line {
			return true
		}
	}
	return false
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
