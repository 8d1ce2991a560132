package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/callcoach/backend/internal/ai"
	"github.com/callcoach/backend/internal/archive"
	"github.com/callcoach/backend/internal/config"
	"github.com/callcoach/backend/internal/service"
)

func TestRouterWiring(t *testing.T) {
	gin.SetMode(gin.TestMode)
	arch := archive.NewMemory()
	m := service.NewManager(nil, ai.MockCompleter{}, arch, nil, zerolog.Nop(), service.Options{})
	defer m.Shutdown(context.Background())

	cfg := config.Config{AdminKey: "secret", CORSAllowed: "*"}
	r := Router(cfg, m, arch, zerolog.Nop())

	cases := []struct {
		method string
		path   string
		key    string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/nudges/latest", "", http.StatusOK},
		{http.MethodGet, "/api/sessions/latest", "", http.StatusUnauthorized},
		{http.MethodGet, "/api/sessions/latest", "secret", http.StatusNotFound},
		{http.MethodGet, "/api/unknown", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(tc.method, tc.path, nil)
		if tc.key != "" {
			req.Header.Set("X-Admin-Key", tc.key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s %s: expected %d, got %d", tc.method, tc.path, tc.want, w.Code)
		}
		if w.Header().Get("X-Request-Id") == "" {
			t.Fatalf("%s %s: missing request id header", tc.method, tc.path)
		}
	}
}
