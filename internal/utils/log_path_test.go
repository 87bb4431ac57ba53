package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetDefaultServerLogPath(t *testing.T) {
	path := GetDefaultServerLogPath()
	require.NotEmpty(t, path)
	assert.True(t, strings.HasSuffix(path, "gateway.log"), path)
}

func TestResolveLogPath_FirstWritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	// blocker 是普通文件，不能作为目录
	want := filepath.Join(dir, "logs", "gateway.log")
	path, err := ResolveLogPath([]string{filepath.Join(blocker, "x.log"), want})
	require.NoError(t, err)
	assert.Equal(t, want, path)

	_, err = os.Stat(want)
	assert.NoError(t, err)
}

func TestResolveLogPath_NoCandidates(t *testing.T) {
	_, err := ResolveLogPath(nil)
	assert.Error(t, err)
}

func TestResolveLogPath_FallsBackToLast(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	last := filepath.Join(blocker, "b.log")
	path, err := ResolveLogPath([]string{filepath.Join(blocker, "a.log"), last})
	require.NoError(t, err)
	assert.Equal(t, last, path)
}
