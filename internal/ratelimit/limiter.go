// Package ratelimit throttles API requests with windowed counters that
// survive restarts. Counters are kept in memory for the hot path and flushed
// to bolt periodically, so a restart cannot be used to reset the window.
package ratelimit

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/mailfold/mailfold/internal/config"
)

var bucketCounters = []byte("request_counters")

const globalKey = "global"

// Counter tracks request counts within the current minute and hour windows.
type Counter struct {
	MinuteCount int       `json:"minute_count"`
	HourCount   int       `json:"hour_count"`
	MinuteStart time.Time `json:"minute_start"`
	HourStart   time.Time `json:"hour_start"`
}

// Result reports whether a request may proceed.
type Result struct {
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter enforces per-client and global request limits.
type Limiter struct {
	db       *bolt.DB
	cfg      config.RateLimitConfig
	counters map[string]*Counter
	mu       sync.Mutex
	stopCh   chan struct{}
}

// New opens the limiter over an existing bolt database and restores
// persisted counters.
func New(db *bolt.DB, cfg config.RateLimitConfig) (*Limiter, error) {
	err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCounters)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit bucket: %w", err)
	}

	l := &Limiter{
		db:       db,
		cfg:      cfg,
		counters: make(map[string]*Counter),
		stopCh:   make(chan struct{}),
	}

	if err := l.loadCounters(); err != nil {
		return nil, fmt.Errorf("failed to load rate limit counters: %w", err)
	}

	go l.persistLoop()

	return l, nil
}

// Allow checks the client's and the global counters and, when allowed,
// increments both. Denial leaves all counters untouched.
func (l *Limiter) Allow(clientKey string) *Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	keys := []string{globalKey, "ip:" + clientKey}

	for _, key := range keys {
		counter := l.getOrCreateCounter(key, now)
		l.resetExpired(counter, now)

		if l.cfg.RequestsPerMinute > 0 && counter.MinuteCount >= l.cfg.RequestsPerMinute {
			return &Result{
				RetryAfter: counter.MinuteStart.Add(time.Minute).Sub(now),
			}
		}
		if l.cfg.RequestsPerHour > 0 && counter.HourCount >= l.cfg.RequestsPerHour {
			return &Result{
				RetryAfter: counter.HourStart.Add(time.Hour).Sub(now),
			}
		}
	}

	for _, key := range keys {
		counter := l.counters[key]
		counter.MinuteCount++
		counter.HourCount++
	}

	return &Result{Allowed: true}
}

// Stop halts the flush loop and persists counters one last time.
func (l *Limiter) Stop() error {
	close(l.stopCh)
	return l.persistCounters()
}

// Middleware rejects over-limit requests with 429 and a Retry-After header.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		result := l.Allow(clientIP(r))
		if !result.Allowed {
			seconds := int(result.RetryAfter.Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(seconds))
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (l *Limiter) getOrCreateCounter(key string, now time.Time) *Counter {
	counter, ok := l.counters[key]
	if !ok {
		counter = &Counter{MinuteStart: now, HourStart: now}
		l.counters[key] = counter
	}
	return counter
}

func (l *Limiter) resetExpired(counter *Counter, now time.Time) {
	if now.Sub(counter.MinuteStart) >= time.Minute {
		counter.MinuteCount = 0
		counter.MinuteStart = now
	}
	if now.Sub(counter.HourStart) >= time.Hour {
		counter.HourCount = 0
		counter.HourStart = now
	}
}

func (l *Limiter) loadCounters() error {
	return l.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCounters)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var counter Counter
			if err := json.Unmarshal(v, &counter); err != nil {
				return nil // skip invalid entries
			}
			l.counters[string(k)] = &counter
			return nil
		})
	})
}

func (l *Limiter) persistCounters() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketCounters)
		if bucket == nil {
			return nil
		}
		for key, counter := range l.counters {
			data, err := json.Marshal(counter)
			if err != nil {
				continue
			}
			if err := bucket.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (l *Limiter) persistLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.persistCounters()
		}
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
