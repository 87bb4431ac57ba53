package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoGateway 把收到的 publish 帧按 {channel, message} 回送
func echoGateway(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			var frame map[string]interface{}
			if err := ws.ReadJSON(&frame); err != nil {
				return
			}
			if frame["command"] != "publish" {
				continue
			}
			_ = ws.WriteJSON(map[string]interface{}{"channel": frame["channel"], "message": frame["message"]})
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketDialer_EndToEnd(t *testing.T) {
	srv := echoGateway(t)

	cfg := DefaultClientConfig()
	cfg.Server.URL = "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	cfg.ReconnectInterval = 10 * time.Millisecond
	c := NewClient(context.Background(), cfg, NewWebSocketDialer())
	t.Cleanup(func() { _ = c.Close() })

	got := make(chan string, 1)
	require.NoError(t, c.Subscribe("echo", func(_, message string) { got <- message }))
	require.NoError(t, c.Publish("echo", "ping"))
	c.Start()

	select {
	case m := <-got:
		assert.Equal(t, "ping", m)
	case <-time.After(3 * time.Second):
		t.Fatal("no delivery from gateway")
	}
}

func TestWebSocketDialer_RejectsNonWebSocket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewWebSocketDialer().Dial(context.Background(), "ws"+strings.TrimPrefix(srv.URL, "http"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
