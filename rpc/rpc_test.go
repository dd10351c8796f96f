package rpc_test

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
	"github.com/vsariola/drawbar/core"
	"github.com/vsariola/drawbar/ring"
	"github.com/vsariola/drawbar/rpc"
)

func serve(t *testing.T) (*core.Broker, *rpc.Client) {
	t.Helper()
	b := core.NewBroker()
	server, err := rpc.Serve(b, "127.0.0.1:0", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { server.Close() })
	client, err := rpc.Dial(server.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return b, client
}

func TestSetReachesAudioRing(t *testing.T) {
	b, client := serve(t)
	require.NoError(t, client.Set(drawbar.ParamReverbMix, 0.25))
	v, ok := b.UIParamsToAudio.ReadValue()
	require.True(t, ok)
	assert.Equal(t, ring.Value{ID: uint32(drawbar.ParamReverbMix), Value: 0.25}, v)
	assert.Error(t, client.Set(drawbar.NumParams, 1))
}

func TestPollFollowsAudioThread(t *testing.T) {
	b, client := serve(t)
	require.True(t, b.UIParamsFromAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamVolume), Value: 0.5}))
	var changes rpc.Changes
	require.Eventually(t, func() bool {
		var err error
		changes, err = client.Poll(0)
		return err == nil && len(changes.Values) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, float32(0.5), changes.Values[drawbar.ParamVolume])

	require.True(t, b.UIParamsFromAudio.TryWriteValue(ring.Value{ID: uint32(drawbar.ParamSwell), Value: 0.1}))
	require.Eventually(t, func() bool {
		next, err := client.Poll(changes.Version)
		if err != nil || len(next.Values) == 0 {
			return false
		}
		assert.Equal(t, map[drawbar.ParamID]float32{drawbar.ParamSwell: 0.1}, next.Values)
		return true
	}, time.Second, 10*time.Millisecond)
}
