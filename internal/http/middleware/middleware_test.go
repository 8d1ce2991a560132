package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdminKey(t *testing.T) {
	r := gin.New()
	r.GET("/open", AdminKey(""), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/closed", AdminKey("secret"), func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		path string
		key  string
		want int
	}{
		{"/open", "", http.StatusOK},
		{"/closed", "", http.StatusUnauthorized},
		{"/closed", "wrong", http.StatusUnauthorized},
		{"/closed", "secret", http.StatusOK},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest(http.MethodGet, tc.path, nil)
		if tc.key != "" {
			req.Header.Set(AdminKeyHeader, tc.key)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != tc.want {
			t.Fatalf("%s with key %q: expected %d, got %d", tc.path, tc.key, tc.want, w.Code)
		}
	}
}

func TestRequestIDEchoesOrGenerates(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Logger(zerolog.Nop()))
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDHeader)) })

	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get(RequestIDHeader) != "abc" || w.Body.String() != "abc" {
		t.Fatalf("expected request id echoed, got %q", w.Header().Get(RequestIDHeader))
	}

	req, _ = http.NewRequest(http.MethodGet, "/", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if got := w.Header().Get(RequestIDHeader); len(got) < 5 || got[:4] != "req_" {
		t.Fatalf("expected generated request id, got %q", got)
	}
}

func TestTimeoutSetsDeadline(t *testing.T) {
	r := gin.New()
	r.Use(Timeout(time.Second))
	r.GET("/", func(c *gin.Context) {
		if _, ok := c.Request.Context().Deadline(); !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Status(http.StatusOK)
	})
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected deadline on request context")
	}
}
