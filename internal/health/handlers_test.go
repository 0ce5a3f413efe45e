package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type stubChecker struct {
	dbErr    error
	redisErr error
}

func (s stubChecker) PingDB(context.Context, time.Duration) error    { return s.dbErr }
func (s stubChecker) PingRedis(context.Context, time.Duration) error { return s.redisErr }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyOK(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler{Checker: stubChecker{}}.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestReadyDegraded(t *testing.T) {
	h := Handler{Checker: stubChecker{dbErr: errors.New("connection refused")}}
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestReadyWithoutChecker(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler{}.Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
