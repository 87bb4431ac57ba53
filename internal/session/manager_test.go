package session

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dharana-gateway/internal/broker"
	"dharana-gateway/internal/conn"
	coreerrors "dharana-gateway/internal/core/errors"
	corelog "dharana-gateway/internal/core/log"
	"dharana-gateway/internal/room"
	"dharana-gateway/internal/subscription"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeTransport struct {
	in         chan []byte
	out        chan []byte
	closed     chan struct{}
	closeOnce  sync.Once
	failWrites atomic.Bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		in:     make(chan []byte, 16),
		out:    make(chan []byte, 16),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) ReadMessage() (int, []byte, error) {
	select {
	case data := <-f.in:
		return websocket.TextMessage, data, nil
	case <-f.closed:
		return 0, nil, &websocket.CloseError{Code: websocket.CloseNormalClosure}
	}
}

func (f *fakeTransport) WriteMessage(_ int, data []byte) error {
	if f.failWrites.Load() {
		return errors.New("broken pipe")
	}
	select {
	case f.out <- data:
		return nil
	case <-f.closed:
		return errors.New("use of closed connection")
	}
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.closeOnce.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeTransport) RemoteAddr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 50000}
}

func (f *fakeTransport) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

type fixture struct {
	broker   *broker.MemoryBroker
	registry *subscription.Registry
	rooms    *room.Directory
	manager  *Manager
}

func newFixture(t *testing.T, cfg *Config, handler FrameHandler) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{
		broker: broker.NewMemoryBroker(ctx, "node-test", broker.TopicFilter{}),
		rooms:  room.NewDirectory("ALL", corelog.NewTestLogger(t)),
	}
	f.registry = subscription.NewRegistry(ctx, f.broker, corelog.NewTestLogger(t))
	f.manager = NewManager(ctx, cfg, f.registry, f.rooms, handler)
	t.Cleanup(func() {
		_ = f.manager.Close()
		_ = f.registry.Close()
		_ = f.broker.Close()
	})
	return f
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 10*time.Millisecond)
}

func TestManager_FramesDispatchedInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []string
	handler := FrameHandlerFunc(func(ctx context.Context, c *Connection, data []byte) error {
		mu.Lock()
		got = append(got, string(data))
		mu.Unlock()
		return nil
	})
	f := newFixture(t, nil, handler)

	tr := newFakeTransport()
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(c.ID(), "conn_"))
	assert.Equal(t, "127.0.0.1:50000", c.RemoteAddr())

	done := make(chan struct{})
	go func() {
		f.manager.Serve(c)
		close(done)
	}()

	for _, s := range []string{"one", "two", "three"} {
		tr.in <- []byte(s)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	})
	assert.Equal(t, []string{"one", "two", "three"}, got)

	_ = tr.Close()
	<-done
	assert.Equal(t, 0, f.manager.ActiveConnections())
}

func TestManager_SendGoesThroughWritePump(t *testing.T) {
	f := newFixture(t, nil, FrameHandlerFunc(func(context.Context, *Connection, []byte) error { return nil }))
	tr := newFakeTransport()
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)

	assert.True(t, c.Send([]byte("hello")))
	select {
	case frame := <-tr.out:
		assert.Equal(t, "hello", string(frame))
	case <-time.After(2 * time.Second):
		t.Fatal("frame not written")
	}

	f.manager.Teardown(c, nil)
	assert.False(t, c.Send([]byte("late")))
	assert.Equal(t, conn.StateClosed, c.State())
}

func TestManager_TeardownReleasesEverythingOnce(t *testing.T) {
	f := newFixture(t, nil, FrameHandlerFunc(func(context.Context, *Connection, []byte) error { return nil }))
	ctx := context.Background()

	a, err := f.manager.Accept(newFakeTransport())
	require.NoError(t, err)
	b, err := f.manager.Accept(newFakeTransport())
	require.NoError(t, err)

	_, err = f.registry.Subscribe(ctx, a, "sensors/temp")
	require.NoError(t, err)
	require.NoError(t, f.rooms.BindPeer(a, "alice"))
	_, err = f.rooms.Join(a, "lobby")
	require.NoError(t, err)
	_, err = f.rooms.Join(b, "lobby")
	require.NoError(t, err)

	infos := f.manager.List()
	require.Len(t, infos, 2)
	assert.Equal(t, "alice", infos[0].PeerID)
	assert.Equal(t, 1, infos[0].Topics)

	f.manager.Teardown(a, nil)
	f.manager.Teardown(a, nil)

	assert.Equal(t, 0, f.registry.Count("sensors/temp"))
	assert.Equal(t, 0, f.broker.SubscriberCount())
	_, ok := f.rooms.Resolve("alice")
	assert.False(t, ok)
	assert.Empty(t, f.rooms.PeerOf(a.ID()))
	assert.Equal(t, 1, f.manager.ActiveConnections())
	assert.Equal(t, 1, f.manager.ActiveRooms())
	_, ok = f.manager.Get(a.ID())
	assert.False(t, ok)
}

func TestManager_HandlerErrorsKeepConnection(t *testing.T) {
	var calls atomic.Int32
	handler := FrameHandlerFunc(func(context.Context, *Connection, []byte) error {
		calls.Add(1)
		return coreerrors.ErrMalformedFrame
	})
	f := newFixture(t, nil, handler)
	tr := newFakeTransport()
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.manager.Serve(c)
		close(done)
	}()
	tr.in <- []byte("garbage")
	tr.in <- []byte("more garbage")
	waitFor(t, func() bool { return calls.Load() == 2 })
	assert.False(t, tr.isClosed())

	_ = tr.Close()
	<-done
}

func TestManager_ConnectionErrorClosesConnection(t *testing.T) {
	handler := FrameHandlerFunc(func(context.Context, *Connection, []byte) error {
		return coreerrors.ErrConnectionError
	})
	f := newFixture(t, nil, handler)
	tr := newFakeTransport()
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.manager.Serve(c)
		close(done)
	}()
	tr.in <- []byte("x")
	<-done
	assert.True(t, tr.isClosed())
}

func TestManager_WriteFailureTearsDown(t *testing.T) {
	f := newFixture(t, nil, FrameHandlerFunc(func(context.Context, *Connection, []byte) error { return nil }))
	tr := newFakeTransport()
	tr.failWrites.Store(true)
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)

	c.Send([]byte("x"))
	waitFor(t, func() bool { return f.manager.ActiveConnections() == 0 })
	assert.True(t, tr.isClosed())
}

func TestManager_RateLimitDropsFrames(t *testing.T) {
	var calls atomic.Int32
	handler := FrameHandlerFunc(func(context.Context, *Connection, []byte) error {
		calls.Add(1)
		return nil
	})
	f := newFixture(t, &Config{SendQueueSize: 4, MaxFramesPerSecond: 1}, handler)
	tr := newFakeTransport()
	c, err := f.manager.Accept(tr)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		f.manager.Serve(c)
		close(done)
	}()
	for i := 0; i < 10; i++ {
		tr.in <- []byte("x")
	}
	// 突发为 2 帧
	waitFor(t, func() bool { return len(tr.in) == 0 })
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, calls.Load(), int32(3))

	_ = tr.Close()
	<-done
}

func TestManager_CloseTearsDownAll(t *testing.T) {
	f := newFixture(t, nil, FrameHandlerFunc(func(context.Context, *Connection, []byte) error { return nil }))
	tr1, tr2 := newFakeTransport(), newFakeTransport()
	_, err := f.manager.Accept(tr1)
	require.NoError(t, err)
	_, err = f.manager.Accept(tr2)
	require.NoError(t, err)

	require.NoError(t, f.manager.Close())
	assert.True(t, tr1.isClosed())
	assert.True(t, tr2.isClosed())
	assert.Equal(t, 0, f.manager.ActiveConnections())

	_, err = f.manager.Accept(newFakeTransport())
	assert.ErrorIs(t, err, coreerrors.ErrServiceClosed)
}
