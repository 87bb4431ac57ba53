package client

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// fakeConn 内存连接，记录写出的帧
type fakeConn struct {
	inbound chan []byte
	closed  chan struct{}

	mu        sync.Mutex
	written   [][]byte
	closeOnce sync.Once
	failWrite bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{inbound: make(chan []byte, 16), closed: make(chan struct{})}
}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.inbound:
		return 1, data, nil
	case <-f.closed:
		return 0, nil, errors.New("closed")
	}
}

func (f *fakeConn) WriteMessage(_ int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWrite {
		return errors.New("broken pipe")
	}
	f.written = append(f.written, append([]byte(nil), data...))
	return nil
}

func (f *fakeConn) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) frames() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]interface{}, 0, len(f.written))
	for _, w := range f.written {
		var m map[string]interface{}
		_ = json.Unmarshal(w, &m)
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.written)
}

// fakeDialer 每次 Dial 从 conns 取一条连接，取不到时阻塞到 ctx 取消
type fakeDialer struct {
	conns chan Conn
	dials int32
	mu    sync.Mutex
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{conns: make(chan Conn, 4)}
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	d.dials++
	d.mu.Unlock()
	select {
	case c := <-d.conns:
		if c == nil {
			return nil, errors.New("refused")
		}
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func testClient(t *testing.T, dialer Dialer) *Client {
	t.Helper()
	cfg := DefaultClientConfig()
	cfg.ReconnectInterval = 10 * time.Millisecond
	c := NewClient(context.Background(), cfg, dialer)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func waitState(t *testing.T, c *Client, s State) {
	t.Helper()
	require.Eventually(t, func() bool { return c.State() == s }, 2*time.Second, 5*time.Millisecond)
}

func TestClient_QueuedWhileDisconnectedDrainsInOrder(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dialer := newFakeDialer()
	c := testClient(t, dialer)
	c.Start()
	waitState(t, c, StateConnecting)

	require.NoError(t, c.Publish("a", "1"))
	require.NoError(t, c.Log("debug/logs", LogEntry{Message: "first log", Timestamp: "t0"}))
	require.NoError(t, c.Publish("a", "2"))
	require.NoError(t, c.Subscribe("news", nil))
	messages, logs := c.QueueLengths()
	assert.Equal(t, 2, messages)
	assert.Equal(t, 1, logs)

	conn := newFakeConn()
	dialer.conns <- conn
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))

	frames := conn.frames()
	require.Len(t, frames, 4)
	assert.Equal(t, "subscribe", frames[0]["command"])
	assert.Equal(t, "news", frames[0]["channel"])
	assert.Equal(t, "publish", frames[1]["command"])
	assert.Equal(t, "1", frames[1]["message"])
	assert.Equal(t, "2", frames[2]["message"])
	assert.Equal(t, "debug_log", frames[3]["command"])
	assert.Equal(t, "debug/logs", frames[3]["channel"])
	assert.Equal(t, "first log", frames[3]["message"])
	assert.NotContains(t, frames[3], "stackTrace")

	messages, logs = c.QueueLengths()
	assert.Zero(t, messages)
	assert.Zero(t, logs)

	require.NoError(t, c.Close())
}

func TestClient_DuplicateSubscribeSuppressedPerConnection(t *testing.T) {
	dialer := newFakeDialer()
	c := testClient(t, dialer)

	first := newFakeConn()
	dialer.conns <- first
	c.Start()
	waitState(t, c, StateConnected)

	require.NoError(t, c.Subscribe("room/1", nil))
	require.NoError(t, c.Subscribe("room/1", nil))
	assert.Equal(t, 1, first.count())

	// 断线后新连接重放一次
	second := newFakeConn()
	dialer.conns <- second
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return second.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	waitState(t, c, StateConnected)

	require.NoError(t, c.Subscribe("room/1", nil))
	frames := second.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "subscribe", frames[0]["command"])
	assert.Equal(t, "room/1", frames[0]["channel"])
}

func TestClient_DeliveriesReachChannelHandler(t *testing.T) {
	dialer := newFakeDialer()
	c := testClient(t, dialer)
	conn := newFakeConn()
	dialer.conns <- conn
	c.Start()
	waitState(t, c, StateConnected)

	got := make(chan string, 4)
	require.NoError(t, c.Subscribe("sensors/temp", func(channel, message string) {
		got <- channel + "=" + message
	}))

	conn.inbound <- []byte(`NEWPEER|peerA|ALL`)
	conn.inbound <- []byte(`{"channel":"other","message":"ignored"}`)
	conn.inbound <- []byte(`{"channel":"sensors/temp","message":"21.5"}`)
	conn.inbound <- []byte(`{"channel":"sensors/temp","message":{"v":22}}`)

	assert.Equal(t, "sensors/temp=21.5", <-got)
	assert.Equal(t, `sensors/temp={"v":22}`, <-got)
}

func TestClient_UnsubscribeRemovesHandlerAndPending(t *testing.T) {
	dialer := newFakeDialer()
	c := testClient(t, dialer)
	conn := newFakeConn()
	dialer.conns <- conn
	c.Start()
	waitState(t, c, StateConnected)

	calls := make(chan string, 1)
	require.NoError(t, c.Subscribe("a", func(_, m string) { calls <- m }))
	require.NoError(t, c.Unsubscribe("a"))

	frames := conn.frames()
	require.Len(t, frames, 2)
	assert.Equal(t, "unsubscribe", frames[1]["command"])

	conn.inbound <- []byte(`{"channel":"a","message":"late"}`)
	select {
	case m := <-calls:
		t.Fatalf("handler called after unsubscribe: %s", m)
	case <-time.After(50 * time.Millisecond):
	}

	// 重连后不再重放
	next := newFakeConn()
	dialer.conns <- next
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		dialer.mu.Lock()
		defer dialer.mu.Unlock()
		return dialer.dials >= 2
	}, 2*time.Second, 5*time.Millisecond)
	waitState(t, c, StateConnected)
	assert.Zero(t, next.count())
}

func TestClient_WriteFailureQueuesAndReconnects(t *testing.T) {
	dialer := newFakeDialer()
	c := testClient(t, dialer)
	broken := newFakeConn()
	dialer.conns <- broken
	c.Start()
	waitState(t, c, StateConnected)

	broken.mu.Lock()
	broken.failWrite = true
	broken.mu.Unlock()

	require.NoError(t, c.Publish("a", "kept"))
	messages, _ := c.QueueLengths()
	assert.Equal(t, 1, messages)

	healthy := newFakeConn()
	dialer.conns <- healthy
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Flush(ctx))

	frames := healthy.frames()
	require.Len(t, frames, 1)
	assert.Equal(t, "kept", frames[0]["message"])
}

func TestClient_RetriesForeverAfterDialFailures(t *testing.T) {
	dialer := newFakeDialer()
	c := testClient(t, dialer)
	dialer.conns <- nil
	dialer.conns <- nil
	dialer.conns <- nil
	conn := newFakeConn()
	dialer.conns <- conn
	c.Start()

	waitState(t, c, StateConnected)
	dialer.mu.Lock()
	assert.Equal(t, int32(4), dialer.dials)
	dialer.mu.Unlock()
}

func TestClient_ClosedRejectsOperations(t *testing.T) {
	c := testClient(t, newFakeDialer())
	c.Start()
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.Publish("a", "b"), ErrClientClosed)
	assert.ErrorIs(t, c.Subscribe("a", nil), ErrClientClosed)
	assert.ErrorIs(t, c.Flush(context.Background()), ErrClientClosed)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestClient_CloseRightAfterStartEndsDisconnected(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := NewClient(context.Background(), DefaultClientConfig(), newFakeDialer())
		c.Start()
		require.NoError(t, c.Close())
		require.Equal(t, StateDisconnected, c.State(), "iteration %d", i)
	}
}
