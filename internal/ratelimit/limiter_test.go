package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mailfold/mailfold/internal/config"
)

func openTestDB(t *testing.T, path string) *bolt.DB {
	t.Helper()
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		t.Fatalf("failed to open bolt database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestLimiter(t *testing.T, db *bolt.DB, perMinute, perHour int) *Limiter {
	t.Helper()
	l, err := New(db, config.RateLimitConfig{
		Enabled:           true,
		RequestsPerMinute: perMinute,
		RequestsPerHour:   perHour,
	})
	if err != nil {
		t.Fatalf("failed to create limiter: %v", err)
	}
	t.Cleanup(func() { l.Stop() })
	return l
}

func TestAllowWithinLimit(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "rl.db"))
	l := newTestLimiter(t, db, 3, 0)

	for i := 0; i < 3; i++ {
		if result := l.Allow("1.2.3.4"); !result.Allowed {
			t.Fatalf("request %d denied, want allowed", i+1)
		}
	}

	result := l.Allow("1.2.3.4")
	if result.Allowed {
		t.Fatal("request over limit allowed")
	}
	if result.RetryAfter <= 0 || result.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want within the minute window", result.RetryAfter)
	}
}

func TestGlobalLimitSpansClients(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "rl.db"))
	l := newTestLimiter(t, db, 2, 0)

	// Different IPs still share the global counter.
	l.Allow("1.1.1.1")
	l.Allow("2.2.2.2")

	if result := l.Allow("3.3.3.3"); result.Allowed {
		t.Error("global limit not enforced across clients")
	}
}

func TestDenialDoesNotConsume(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "rl.db"))
	l := newTestLimiter(t, db, 1, 0)

	l.Allow("1.2.3.4")

	// Repeated denials must not advance any counter.
	for i := 0; i < 5; i++ {
		if result := l.Allow("1.2.3.4"); result.Allowed {
			t.Fatal("request over limit allowed")
		}
	}

	l.mu.Lock()
	count := l.counters[globalKey].MinuteCount
	l.mu.Unlock()
	if count != 1 {
		t.Errorf("global counter = %d after denials, want 1", count)
	}
}

func TestCountersSurviveRestart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rl.db")

	db := openTestDB(t, path)
	l := newTestLimiter(t, db, 2, 0)
	l.Allow("1.2.3.4")
	l.Allow("1.2.3.4")
	if err := l.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	db.Close()

	db2 := openTestDB(t, path)
	l2, err := New(db2, config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2})
	if err != nil {
		t.Fatalf("failed to reopen limiter: %v", err)
	}
	t.Cleanup(func() { l2.Stop() })

	if result := l2.Allow("1.2.3.4"); result.Allowed {
		t.Error("counters reset after restart, want persisted window")
	}
}

func TestMiddleware(t *testing.T) {
	db := openTestDB(t, filepath.Join(t.TempDir(), "rl.db"))
	l := newTestLimiter(t, db, 1, 0)

	handler := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first request status = %d, want 200", rec.Code)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("missing Retry-After header on 429")
	}
}
