//go:build plugin

package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/cmd"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/version"
	"pipelined.dev/audio/vst2"
)

var pluginID = [4]byte{'D', 'r', 'b', 'r'}

const (
	pluginName     = "Drawbar"
	pluginVersion  = int32(100)
	restoreTimeout = time.Minute
)

// newLogger logs to a file next to the user configuration, as plugins have
// no console.
func newLogger() *slog.Logger {
	var w io.Writer = io.Discard
	if configDir, err := os.UserConfigDir(); err == nil {
		dir := filepath.Join(configDir, "Drawbar")
		if err := os.MkdirAll(dir, os.ModePerm); err == nil {
			if f, err := os.OpenFile(filepath.Join(dir, "drawbar-vsti.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644); err == nil {
				w = f
			}
		}
	}
	return slog.New(slog.NewTextHandler(w, nil)).With("version", version.VersionOrHash)
}

func sampleRate(h vst2.Host) int {
	if timeInfo := h.GetTimeInfo(0); timeInfo != nil && timeInfo.SampleRate > 0 {
		return int(timeInfo.SampleRate)
	}
	return 44100
}

func logAlerts(alerts <-chan core.Alert, logger *slog.Logger, done <-chan struct{}) {
	for {
		select {
		case a := <-alerts:
			logger.Info("alert", "name", a.Name, "priority", a.Priority, "message", a.Message)
		case <-done:
			return
		}
	}
}

func init() {
	vst2.PluginAllocator = func(h vst2.Host) (vst2.Plugin, vst2.Dispatcher) {
		return newPlugin(cmd.Factory, sampleRate(h), newLogger())
	}
}

// newPlugin starts a session playing engines of factory. The allocator has no
// way to report failure, so if the organ cannot start, the plugin is returned
// without audio ports and with a processing function that does nothing.
func newPlugin(factory drawbar.EngineFactory, rate int, logger *slog.Logger) (vst2.Plugin, vst2.Dispatcher) {
	plugin := vst2.Plugin{
		UniqueID:       pluginID,
		Version:        pluginVersion,
		InputChannels:  2,
		OutputChannels: 2,
		Name:           pluginName,
		Vendor:         "vsariola/drawbar",
		Category:       vst2.PluginCategorySynth,
		Flags:          vst2.PluginIsSynth,
	}
	session, processor, err := core.NewSession(factory, core.Options{SampleRate: rate, Logger: logger})
	if err != nil {
		logger.Error("could not start the organ", "err", err)
		plugin.InputChannels, plugin.OutputChannels = 0, 0
		plugin.ProcessFloatFunc = func(in, out vst2.FloatBuffer) {}
		return plugin, vst2.Dispatcher{}
	}
	done := make(chan struct{})
	go logAlerts(session.Alerts(), logger, done)
	var events core.EventQueue
	plugin.ProcessFloatFunc = func(in, out vst2.FloatBuffer) {
		processor.Process(
			drawbar.AudioBuffer{in.Channel(0), in.Channel(1)},
			drawbar.AudioBuffer{out.Channel(0), out.Channel(1)},
			&events)
	}
	return plugin, vst2.Dispatcher{
		CanDoFunc: func(pcds vst2.PluginCanDoString) vst2.CanDoResponse {
			switch pcds {
			case vst2.PluginCanReceiveEvents, vst2.PluginCanReceiveMIDIEvent:
				return vst2.YesCanDo
			}
			return vst2.NoCanDo
		},
		ProcessEventsFunc: func(ev *vst2.EventsPtr) {
			for i := 0; i < ev.NumEvents(); i++ {
				switch v := ev.Event(i).(type) {
				case *vst2.MIDIEvent:
					events.Add(core.MakeMIDIEvent(int(v.DeltaFrames), v.Data[:]))
				}
			}
		},
		CloseFunc: func() {
			session.Close()
			close(done)
		},
		GetChunkFunc: func(isPreset bool) []byte {
			return session.SaveState()
		},
		SetChunkFunc: func(data []byte, isPreset bool) {
			// the rebuild completes on the audio thread, which the host
			// may not have started yet
			data = bytes.Clone(data)
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), restoreTimeout)
				defer cancel()
				if err := session.RestoreState(ctx, data); err != nil {
					logger.Error("could not restore state", "err", err)
				}
			}()
		},
	}
}

func main() {}
