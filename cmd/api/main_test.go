package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/whatsapp-leadbot/internal/conversation"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, botMetrics := setupMetrics()
	if handler == nil || botMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	botMetrics.ObserveTurn("detected", 10*time.Millisecond)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "leadbot_conversation_turns_total") {
		t.Fatalf("expected turn counter to be exported")
	}
}

func TestHealthChecksRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	checks := healthChecks(nil, client)
	if len(checks) != 1 {
		t.Fatalf("expected only the redis check, got %d", len(checks))
	}
	if err := checks["redis"](context.Background()); err != nil {
		t.Fatalf("expected redis healthy: %v", err)
	}
}

func TestHistoryOrNil(t *testing.T) {
	if historyOrNil(nil) != nil {
		t.Fatalf("expected nil history for a disabled log")
	}
	if historyOrNil(conversation.NewLogStore(nil)) != nil {
		t.Fatalf("expected nil history for a nil database")
	}
}
