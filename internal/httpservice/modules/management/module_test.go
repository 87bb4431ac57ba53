package management

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"dharana-gateway/internal/conn"
	"dharana-gateway/internal/core/metrics"
	"dharana-gateway/internal/httpservice"
	"dharana-gateway/internal/packet"
	"dharana-gateway/internal/session"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRooms struct {
	members map[string][]packet.PeerInfo
}

func (f *fakeRooms) Rooms() []string {
	out := make([]string, 0, len(f.members))
	for id := range f.members {
		out = append(out, id)
	}
	return out
}

func (f *fakeRooms) Members(roomID string) []packet.PeerInfo {
	return f.members[roomID]
}

type fakeTopics struct {
	counts map[string]int
}

func (f *fakeTopics) ActiveTopics() int       { return len(f.counts) }
func (f *fakeTopics) Count(topic string) int { return f.counts[topic] }

type fakeSessions struct {
	infos []*conn.Info
}

func (f *fakeSessions) Accept(session.Transport) (*session.Connection, error) { return nil, nil }
func (f *fakeSessions) Serve(*session.Connection)                            {}
func (f *fakeSessions) ActiveConnections() int                               { return len(f.infos) }
func (f *fakeSessions) ActiveRooms() int                                     { return 1 }
func (f *fakeSessions) List() []*conn.Info                                   { return f.infos }

func newRouter(t *testing.T, cfg httpservice.ManagementAPIModuleConfig, deps *httpservice.ModuleDependencies) *mux.Router {
	t.Helper()
	m := NewManagementModule(context.Background(), &cfg)
	t.Cleanup(func() { _ = m.Stop() })
	if deps != nil {
		m.SetDependencies(deps)
	}
	router := mux.NewRouter()
	m.RegisterRoutes(router)
	return router
}

func fullDeps(t *testing.T) *httpservice.ModuleDependencies {
	t.Helper()
	mm := metrics.NewMemoryMetrics(context.Background())
	t.Cleanup(func() { _ = mm.Close() })
	require.NoError(t, mm.IncrementCounter("frames_in", nil))

	return &httpservice.ModuleDependencies{
		SessionMgr: &fakeSessions{infos: []*conn.Info{
			{ConnID: "c1", PeerID: "alice", RoomID: "lobby", State: "open"},
			{ConnID: "c2", PeerID: "bob", RoomID: "lobby", State: "open"},
		}},
		Rooms: &fakeRooms{members: map[string][]packet.PeerInfo{
			"lobby": {{PeerID: "alice"}, {PeerID: "bob"}},
		}},
		Topics:  &fakeTopics{counts: map[string]int{"sensors/a/temp": 2, "chat": 1}},
		Metrics: mm,
	}
}

func get(router http.Handler, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var raw struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.True(t, raw.Success)
	require.NoError(t, json.Unmarshal(raw.Data, out))
}

func openConfig() httpservice.ManagementAPIModuleConfig {
	return httpservice.ManagementAPIModuleConfig{Enabled: true, Auth: httpservice.AuthConfig{Type: "none"}}
}

func TestManagement_Stats(t *testing.T) {
	router := newRouter(t, openConfig(), fullDeps(t))

	rec := get(router, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, 2, resp.ActiveConnections)
	assert.Equal(t, 1, resp.ActiveRooms)
	assert.Equal(t, 2, resp.ActiveTopics)
	assert.Equal(t, []string{"lobby"}, resp.Rooms)
	assert.Equal(t, float64(1), resp.Metrics["frames_in"])
	assert.NotEmpty(t, resp.Time)
}

func TestManagement_StatsWithoutDependencies(t *testing.T) {
	mm := metrics.NewMemoryMetrics(context.Background())
	t.Cleanup(func() { _ = mm.Close() })
	router := newRouter(t, openConfig(), &httpservice.ModuleDependencies{Metrics: mm})

	rec := get(router, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp StatsResponse
	decodeData(t, rec, &resp)
	assert.Zero(t, resp.ActiveConnections)
	assert.Zero(t, resp.ActiveTopics)
	assert.Empty(t, resp.Rooms)
}

func TestManagement_Room(t *testing.T) {
	router := newRouter(t, openConfig(), fullDeps(t))

	rec := get(router, "/stats/rooms/lobby", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp RoomResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, "lobby", resp.RoomID)
	assert.Equal(t, []packet.PeerInfo{{PeerID: "alice"}, {PeerID: "bob"}}, resp.Members)

	rec = get(router, "/stats/rooms/nowhere", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManagement_Topic(t *testing.T) {
	router := newRouter(t, openConfig(), fullDeps(t))

	rec := get(router, "/stats/topics/sensors/a/temp", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp TopicResponse
	decodeData(t, rec, &resp)
	assert.Equal(t, TopicResponse{Topic: "sensors/a/temp", Subscribers: 2}, resp)

	rec = get(router, "/stats/topics/unknown", "")
	require.Equal(t, http.StatusOK, rec.Code)
	decodeData(t, rec, &resp)
	assert.Equal(t, 0, resp.Subscribers)
}

func TestManagement_Connections(t *testing.T) {
	router := newRouter(t, openConfig(), fullDeps(t))

	rec := get(router, "/stats/connections", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var infos []conn.Info
	decodeData(t, rec, &infos)
	require.Len(t, infos, 2)
	assert.Equal(t, "alice", infos[0].PeerID)

	bare := newRouter(t, openConfig(), &httpservice.ModuleDependencies{})
	assert.Equal(t, http.StatusServiceUnavailable, get(bare, "/stats/connections", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(bare, "/stats/rooms/lobby", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(bare, "/stats/topics/chat", "").Code)
}

func TestManagement_BearerAuth(t *testing.T) {
	cfg := httpservice.ManagementAPIModuleConfig{
		Enabled: true,
		Auth:    httpservice.AuthConfig{Type: "bearer", Secret: "s3cret"},
	}
	router := newRouter(t, cfg, fullDeps(t))

	assert.Equal(t, http.StatusUnauthorized, get(router, "/stats", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/stats", "wrong").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/stats/rooms/lobby", "").Code)
	assert.Equal(t, http.StatusOK, get(router, "/stats", "s3cret").Code)
	assert.Equal(t, http.StatusOK, get(router, "/stats/topics/chat", "s3cret").Code)
}

func TestManagement_DisabledRegistersNothing(t *testing.T) {
	router := newRouter(t, httpservice.ManagementAPIModuleConfig{Enabled: false}, fullDeps(t))

	assert.Equal(t, http.StatusNotFound, get(router, "/stats", "").Code)
	assert.Equal(t, http.StatusNotFound, get(router, "/stats/rooms/lobby", "").Code)
}
