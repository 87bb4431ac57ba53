package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	wd, err := os.Getwd()
	require.NoError(t, err)

	cases := map[string]string{
		"~":                             home,
		"~/.dharana/client-config.yaml": filepath.Join(home, ".dharana", "client-config.yaml"),
		"./logs/gateway.log":            filepath.Join(wd, "logs", "gateway.log"),
		"/var/log/gateway.log":          "/var/log/gateway.log",
	}
	for in, want := range cases {
		got, err := ExpandPath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err = ExpandPath("")
	assert.Error(t, err)
}
