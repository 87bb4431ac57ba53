package utils

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameLimiter(t *testing.T) {
	unlimited := NewFrameLimiter(0)
	for i := 0; i < 1000; i++ {
		require.True(t, unlimited.Allow())
	}

	limited := NewFrameLimiter(1)
	allowed := 0
	for i := 0; i < 10; i++ {
		if limited.Allow() {
			allowed++
		}
	}
	assert.Equal(t, 2, allowed, "burst is twice the per-second rate")

	var nilLimiter *FrameLimiter
	assert.True(t, nilLimiter.Allow())
}

func TestInitLogger(t *testing.T) {
	defer Logger.SetOutput(os.Stdout)

	path := filepath.Join(t.TempDir(), "gateway.log")
	require.NoError(t, InitLogger(&LogConfig{Level: "debug", Format: "text", Output: "file", File: path}))
	assert.Equal(t, logrus.DebugLevel, Logger.GetLevel())

	Infof("Gateway: hello %s", "file")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Gateway: hello file")

	assert.Error(t, InitLogger(&LogConfig{Level: "loud"}))
	assert.Error(t, InitLogger(&LogConfig{Output: "file"}))
}

func TestLocalIPv4(t *testing.T) {
	ip := net.ParseIP(LocalIPv4())
	require.NotNil(t, ip)
	assert.NotNil(t, ip.To4())
}

func TestSafeGo_RecoversPanic(t *testing.T) {
	done := make(chan struct{})
	SafeGo("panicking", func() {
		defer close(done)
		panic("boom")
	})
	<-done

	ran := make(chan struct{})
	SafeGo("after", func() { close(ran) })
	<-ran
}
