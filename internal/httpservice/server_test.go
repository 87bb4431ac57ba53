package httpservice

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"dharana-gateway/internal/health"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModule struct {
	started, stopped bool
	deps             *ModuleDependencies
	startErr         error
}

func (m *stubModule) Name() string { return "stub" }

func (m *stubModule) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/stub", func(w http.ResponseWriter, r *http.Request) {
		RespondJSON(w, http.StatusOK, "pong")
	}).Methods(http.MethodGet)
}

func (m *stubModule) SetDependencies(deps *ModuleDependencies) { m.deps = deps }
func (m *stubModule) Start() error                            { m.started = true; return m.startErr }
func (m *stubModule) Stop() error                             { m.stopped = true; return nil }

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func decode(t *testing.T, rec *httptest.ResponseRecorder) (ResponseData, map[string]interface{}) {
	t.Helper()
	var raw struct {
		ResponseData
		Data map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return raw.ResponseData, raw.Data
}

func TestHTTPService_ModuleRoutesAndDependencies(t *testing.T) {
	deps := &ModuleDependencies{}
	s := NewHTTPService(context.Background(), nil, deps)
	mod := &stubModule{}
	s.RegisterModule(mod)
	s.RegisterModule(nil)

	assert.Same(t, deps, mod.deps)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/stub", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":"pong"}`, rec.Body.String())
}

func TestHTTPService_HealthzWithoutManager(t *testing.T) {
	s := NewHTTPService(context.Background(), nil, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	resp, data := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, "healthy", data["status"])
}

func TestHTTPService_HealthzReflectsComponents(t *testing.T) {
	hm := health.NewHealthManager("node-1", "test", context.Background())
	var brokerErr error
	hm.Register("broker", health.NewBrokerHealthChecker(pingFunc(func(context.Context) error { return brokerErr })))

	s := NewHTTPService(context.Background(), nil, &ModuleDependencies{HealthManager: hm})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, data := decode(t, rec)
	assert.Equal(t, "node-1", data["node_id"])

	brokerErr = errors.New("connection refused")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, data = decode(t, rec)
	assert.Equal(t, "unhealthy", data["status"])
}

func TestHTTPService_ReadyTurnsOffWhenDraining(t *testing.T) {
	hm := health.NewHealthManager("node-1", "test", context.Background())
	s := NewHTTPService(context.Background(), nil, &ModuleDependencies{HealthManager: hm})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	hm.MarkDraining()
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	_, data := decode(t, rec)
	assert.Equal(t, false, data["ready"])
}

func TestHTTPService_CORS(t *testing.T) {
	cfg := DefaultHTTPServiceConfig()
	cfg.CORS.Enabled = true
	cfg.CORS.AllowedOrigins = []string{"https://app.example.com"}
	s := NewHTTPService(context.Background(), cfg, nil)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuthMiddleware(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := AuthMiddleware(&AuthConfig{Type: "bearer", Secret: "s3cret"})(ok)

	cases := []struct {
		header string
		code   int
	}{
		{"", http.StatusUnauthorized},
		{"Basic abc", http.StatusUnauthorized},
		{"Bearer wrong", http.StatusUnauthorized},
		{"Bearer s3cret", http.StatusNoContent},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tc.header != "" {
			req.Header.Set("Authorization", tc.header)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.code, rec.Code, tc.header)
	}

	rec := httptest.NewRecorder()
	AuthMiddleware(&AuthConfig{Type: "none"})(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestOriginAllowed(t *testing.T) {
	assert.True(t, OriginAllowed(nil, "https://a.example"))
	assert.True(t, OriginAllowed([]string{"*"}, "https://a.example"))
	assert.True(t, OriginAllowed([]string{"https://A.example"}, "https://a.example"))
	assert.False(t, OriginAllowed([]string{"https://b.example"}, "https://a.example"))
}

func TestHTTPService_StartStop(t *testing.T) {
	cfg := DefaultHTTPServiceConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewHTTPService(context.Background(), cfg, nil)
	mod := &stubModule{}
	s.RegisterModule(mod)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, mod.started)

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.True(t, mod.stopped)
	assert.True(t, s.IsClosed())
}

func TestHTTPService_StartFailsOnModuleError(t *testing.T) {
	cfg := DefaultHTTPServiceConfig()
	cfg.ListenAddr = "127.0.0.1:0"
	s := NewHTTPService(context.Background(), cfg, nil)
	s.RegisterModule(&stubModule{startErr: errors.New("boom")})

	assert.EqualError(t, s.Start(context.Background()), "boom")
	_ = s.Close()
}
