//go:build plugin

package main

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/cmd"
)

type brokenFactory struct{}

func (brokenFactory) Name() string { return "broken" }

func (brokenFactory) NewEngine() (drawbar.Engine, error) {
	return nil, errors.New("out of wheels")
}

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestPluginWithoutOrganHasNoPorts(t *testing.T) {
	plugin, dispatcher := newPlugin(brokenFactory{}, 48000, discardLogger())
	assert.Equal(t, 0, plugin.InputChannels)
	assert.Equal(t, 0, plugin.OutputChannels)
	require.NotNil(t, plugin.ProcessFloatFunc)
	assert.Nil(t, dispatcher.CloseFunc)
}

func TestPluginPlaysOrgan(t *testing.T) {
	plugin, dispatcher := newPlugin(cmd.Factory, 48000, discardLogger())
	assert.Equal(t, 2, plugin.InputChannels)
	assert.Equal(t, 2, plugin.OutputChannels)
	require.NotNil(t, dispatcher.CloseFunc)
	assert.NotNil(t, dispatcher.SetChunkFunc)
	dispatcher.CloseFunc()
}
