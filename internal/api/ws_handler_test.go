package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type recordingSubscriber struct {
	channels []string
}

func (s *recordingSubscriber) Subscribe(_ context.Context, channels ...string) *redis.PubSub {
	s.channels = append(s.channels, channels...)
	return nil
}

func TestWsHandler_CheckOrigin(t *testing.T) {
	cases := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", nil, "", true},
		{"same host", nil, "http://example.com", true},
		{"other host", nil, "http://evil.com", false},
		{"allow list hit", []string{"https://fliers.example.org"}, "https://fliers.example.org", true},
		{"allow list miss", []string{"https://fliers.example.org"}, "http://example.com", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := NewWsHandler(nil, quietLogger(), tc.allowed)
			req := httptest.NewRequest("GET", "http://example.com/ws", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			if got := h.checkOrigin(req); got != tc.want {
				t.Fatalf("checkOrigin = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestWsHandler_RequiresSession(t *testing.T) {
	sub := &recordingSubscriber{}
	h := NewWsHandler(sub, quietLogger(), nil)
	r := gin.New()
	r.GET("/ws", h.HandleConnection)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(sub.channels) != 0 {
		t.Fatalf("subscribed without a session: %v", sub.channels)
	}
}

func TestWsHandler_RejectsPlainHTTP(t *testing.T) {
	env := newTestEnv(t, envOptions{})

	rec := env.do(httptest.NewRequest(http.MethodGet, "/ws", nil), env.cookie(t, testSessionID, true))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for a request without the upgrade handshake", rec.Code)
	}
}
