package drawbar_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
)

func TestParamNamesAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i, p := range drawbar.Params {
		require.NotEmpty(t, p.Name, "param %d", i)
		require.False(t, seen[p.Name], p.Name)
		seen[p.Name] = true
		id, ok := drawbar.ParamByName(p.Name)
		require.True(t, ok)
		assert.Equal(t, drawbar.ParamID(i), id)
		assert.Equal(t, p.Default, p.Clamp(p.Default), "default of %s in range", p.Name)
	}
}

func TestParamParseAndFormat(t *testing.T) {
	db := drawbar.Params[drawbar.ParamUpperDrawbar8]
	v, err := db.Parse("6")
	require.NoError(t, err)
	assert.Equal(t, float32(6), v)
	assert.Equal(t, "6", db.Format(v))
	_, err = db.Parse("9")
	assert.Error(t, err)
	_, err = db.Parse("loud")
	assert.Error(t, err)
	vol := drawbar.Params[drawbar.ParamVolume]
	v, err = vol.Parse("0.25")
	require.NoError(t, err)
	assert.Equal(t, "0.25", vol.Format(v))
}

func TestFromController(t *testing.T) {
	db := drawbar.Params[drawbar.ParamUpperDrawbar16]
	assert.Equal(t, float32(0), db.FromController(0))
	assert.Equal(t, float32(8), db.FromController(127))
	assert.Equal(t, float32(4), db.FromController(64))
	speed := drawbar.Params[drawbar.ParamRotarySpeed]
	assert.Equal(t, float32(drawbar.RotaryFast), speed.FromController(127))
}
