package command

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"dharana-gateway/internal/broker"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/session"
	"dharana-gateway/internal/subscription"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type pipeTransport struct {
	out       chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newPipeTransport() *pipeTransport {
	return &pipeTransport{out: make(chan []byte, 64), closed: make(chan struct{})}
}

func (p *pipeTransport) ReadMessage() (int, []byte, error) {
	<-p.closed
	return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
}

func (p *pipeTransport) WriteMessage(_ int, data []byte) error {
	select {
	case p.out <- data:
		return nil
	case <-p.closed:
		return errors.New("closed")
	}
}

func (p *pipeTransport) SetWriteDeadline(time.Time) error { return nil }

func (p *pipeTransport) Close() error {
	p.closeOnce.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 40000}
}

type harness struct {
	t          *testing.T
	broker     *broker.MemoryBroker
	registry   *subscription.Registry
	rooms      *room.Directory
	dispatcher *Dispatcher
	manager    *session.Manager
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()
	ctx := context.Background()
	h := &harness{t: t}
	h.broker = broker.NewMemoryBroker(ctx, "node-test", broker.TopicFilter{SystemPrefix: "$SYS"})
	h.registry = subscription.NewRegistry(ctx, h.broker, corelog.NewTestLogger(t))
	h.rooms = room.NewDirectory("ALL", corelog.NewTestLogger(t))
	h.dispatcher = NewDispatcher(cfg, packet.Parser{SelfTestMarker: "SELFTEST"}, h.broker, h.registry, h.rooms)
	h.dispatcher.Use(&LoggingMiddleware{}, &MetricsMiddleware{})
	h.manager = session.NewManager(ctx, nil, h.registry, h.rooms, h.dispatcher)
	t.Cleanup(func() {
		_ = h.manager.Close()
		_ = h.registry.Close()
		_ = h.broker.Close()
	})
	return h
}

type testClient struct {
	h    *harness
	conn *session.Connection
	tr   *pipeTransport
}

func (h *harness) connect() *testClient {
	h.t.Helper()
	tr := newPipeTransport()
	c, err := h.manager.Accept(tr)
	require.NoError(h.t, err)
	return &testClient{h: h, conn: c, tr: tr}
}

func (c *testClient) send(frame string) error {
	return c.h.dispatcher.HandleFrame(context.Background(), c.conn, []byte(frame))
}

func (c *testClient) mustSend(frame string) {
	c.h.t.Helper()
	require.NoError(c.h.t, c.send(frame))
}

func (c *testClient) next() []byte {
	c.h.t.Helper()
	select {
	case frame := <-c.tr.out:
		return frame
	case <-time.After(2 * time.Second):
		c.h.t.Fatal("timeout waiting for frame")
		return nil
	}
}

func (c *testClient) nextJSON() map[string]interface{} {
	c.h.t.Helper()
	var out map[string]interface{}
	require.NoError(c.h.t, json.Unmarshal(c.next(), &out))
	return out
}

func (c *testClient) none() {
	c.h.t.Helper()
	select {
	case frame := <-c.tr.out:
		c.h.t.Fatalf("unexpected frame %s", frame)
	case <-time.After(50 * time.Millisecond):
	}
}
