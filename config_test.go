package drawbar_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vsariola/drawbar"
)

func TestParseConfigLine(t *testing.T) {
	for _, tc := range []struct {
		in       string
		key, val string
		ok, err  bool
	}{
		{"volume=0.5", "volume", "0.5", true, false},
		{"  midi.upper.channel = 2  ", "midi.upper.channel", "2", true, false},
		{"", "", "", false, false},
		{"   # a comment", "", "", false, false},
		{"novalue", "", "", false, true},
		{"=3", "", "", false, true},
		{"empty=", "empty", "", true, false},
	} {
		line, ok, err := drawbar.ParseConfigLine(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.err, err != nil, tc.in)
		assert.Equal(t, tc.key, line.Key, tc.in)
		assert.Equal(t, tc.val, line.Value, tc.in)
	}
}

func TestReadConfigSkipsMalformedLines(t *testing.T) {
	lines, errs := drawbar.ReadConfig(strings.NewReader("a=1\nbroken\n\n# c\nb=2\n"), "test.cfg")
	require.Len(t, lines, 2)
	assert.Equal(t, drawbar.ConfigLine{Key: "a", Value: "1", File: "test.cfg", Line: 1}, lines[0])
	assert.Equal(t, drawbar.ConfigLine{Key: "b", Value: "2", File: "test.cfg", Line: 5}, lines[1])
	require.Len(t, errs, 1)
	assert.Equal(t, 2, errs[0].Line)
	assert.Contains(t, errs.Error(), "test.cfg:2")
}

func TestLoadConfigFileExpandsIncludes(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	write := func(path, content string) {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write(filepath.Join(dir, "main.cfg"), "a=1\nconfig.read=sub/inc.cfg\nd=4\nconfig.read=missing.cfg\n")
	write(filepath.Join(sub, "inc.cfg"), "b=2\nconfig.read=inner.cfg\n")
	write(filepath.Join(sub, "inner.cfg"), "c=3\n")
	lines, errs, err := drawbar.LoadConfigFile(filepath.Join(dir, "main.cfg"))
	require.NoError(t, err)
	var keys []string
	for _, l := range lines {
		keys = append(keys, l.String())
	}
	assert.Equal(t, []string{"a=1", "b=2", "c=3", "d=4"}, keys)
	require.Len(t, errs, 1, "the missing include is reported")
	assert.True(t, errors.Is(errs[0], os.ErrNotExist))
}

func TestIncludeDepthIsLimited(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "self.cfg")
	require.NoError(t, os.WriteFile(path, []byte("x=1\nconfig.read=self.cfg\n"), 0o644))
	lines, errs, err := drawbar.LoadConfigFile(path)
	require.NoError(t, err)
	assert.Len(t, lines, drawbar.MaxIncludeDepth)
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], drawbar.ErrIncludeDepth)
}

func TestLoadConfigFileMissing(t *testing.T) {
	_, _, err := drawbar.LoadConfigFile(filepath.Join(t.TempDir(), "bad", "path"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriteConfigRoundTrip(t *testing.T) {
	in := []drawbar.ConfigLine{{Key: "volume", Value: "0.25"}, {Key: "midi.controller.upper.74", Value: "-reverb.mix"}}
	var buf bytes.Buffer
	require.NoError(t, drawbar.WriteConfig(&buf, in, "saved state"))
	out, errs := drawbar.ReadConfig(&buf, "")
	assert.Empty(t, errs)
	require.Len(t, out, 2)
	for i := range in {
		assert.Equal(t, in[i].String(), out[i].String())
	}
}
