package health

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingStub struct {
	err error
}

func (p *pingStub) Ping(ctx context.Context) error { return p.err }

type statsStub struct {
	conns, rooms int
}

func (s *statsStub) ActiveConnections() int { return s.conns }
func (s *statsStub) ActiveRooms() int       { return s.rooms }

func TestBrokerHealthChecker(t *testing.T) {
	h, err := NewBrokerHealthChecker(&pingStub{}).Check(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, ComponentStatusHealthy, h.Status)

	h, _ = NewBrokerHealthChecker(&pingStub{err: errors.New("broker is closed")}).Check(context.Background())
	assert.Equal(t, ComponentStatusUnhealthy, h.Status)
	assert.Equal(t, "broker is closed", h.Message)

	h, _ = NewBrokerHealthChecker(nil).Check(context.Background())
	assert.Equal(t, ComponentStatusUnhealthy, h.Status)
}

func TestGatewayHealthChecker(t *testing.T) {
	draining := false
	c := NewGatewayHealthChecker(&statsStub{}, func() bool { return draining })

	h, _ := c.Check(context.Background())
	assert.Equal(t, ComponentStatusHealthy, h.Status)
	assert.Equal(t, "no active connections", h.Message)

	draining = true
	h, _ = c.Check(context.Background())
	assert.Equal(t, ComponentStatusDegraded, h.Status)
}

func TestHealthManager_GetHealthInfo(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewHealthManager("node-1", "test", ctx)
	m.SetStats(&statsStub{conns: 3, rooms: 1})
	m.Register("broker", NewBrokerHealthChecker(&pingStub{}))

	info := m.GetHealthInfo(ctx)
	assert.Equal(t, ComponentStatusHealthy, info.Status)
	assert.Equal(t, 3, info.ActiveConnections)
	assert.Equal(t, 1, info.ActiveRooms)
	assert.True(t, info.AcceptingNewConns)

	m.MarkDraining()
	info = m.GetHealthInfo(ctx)
	assert.Equal(t, ComponentStatusDegraded, info.Status)
	assert.False(t, m.IsAcceptingConnections())

	m.Register("broker", NewBrokerHealthChecker(&pingStub{err: errors.New("down")}))
	assert.Equal(t, ComponentStatusUnhealthy, m.GetHealthInfo(ctx).Status)
}
