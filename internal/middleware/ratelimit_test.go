package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, remote string) int {
	req := httptest.NewRequest(http.MethodPost, "/api/layout", nil)
	req.RemoteAddr = remote
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRateLimiterGlobal(t *testing.T) {
	rl := NewRateLimiter(1, 2, 100, 100)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	codes := []int{
		hit(h, "10.0.0.1:1"),
		hit(h, "10.0.0.2:1"),
		hit(h, "10.0.0.3:1"),
	}
	want := []int{200, 200, 429}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status %d, want %d", i, codes[i], want[i])
		}
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(100, 100, 1, 1)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	if code := hit(h, "10.0.0.1:1"); code != http.StatusOK {
		t.Fatalf("first request: %d", code)
	}
	if code := hit(h, "10.0.0.1:2"); code != http.StatusTooManyRequests {
		t.Errorf("second request from same ip: %d, want 429", code)
	}
	if code := hit(h, "10.0.0.2:1"); code != http.StatusOK {
		t.Errorf("other ip: %d, want 200", code)
	}
}

func TestRateLimiterRecovers(t *testing.T) {
	rl := NewRateLimiter(100, 100, 20, 1)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	hit(h, "10.0.0.1:1")
	time.Sleep(100 * time.Millisecond)
	if code := hit(h, "10.0.0.1:1"); code != http.StatusOK {
		t.Errorf("after refill: %d, want 200", code)
	}
}

func TestRateLimiterEvictIdle(t *testing.T) {
	rl := NewRateLimiter(100, 100, 10, 10)
	defer rl.Stop()

	rl.limiterFor("10.0.0.1")
	rl.limiterFor("10.0.0.2")
	rl.mu.Lock()
	rl.perIP["10.0.0.1"].lastSeen = time.Now().Add(-2 * limiterIdleTTL)
	rl.mu.Unlock()

	rl.evictIdle(time.Now())
	if n := rl.tracked(); n != 1 {
		t.Errorf("tracked = %d, want 1", n)
	}
}

func TestRateLimiterConcurrent(t *testing.T) {
	rl := NewRateLimiter(1000, 1000, 1000, 1000)
	defer rl.Stop()
	h := rl.Limit(okHandler())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hit(h, "10.0.0.9:1")
		}()
	}
	wg.Wait()
	rl.Stop()
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		xri    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.5, 10.0.0.1", "", "10.0.0.9:80", "203.0.113.5"},
		{"real ip", "", "198.51.100.7", "10.0.0.9:80", "198.51.100.7"},
		{"remote v4", "", "", "192.0.2.1:5555", "192.0.2.1"},
		{"remote v6", "", "", "[2001:db8::1]:443", "2001:db8::1"},
		{"remote no port", "", "", "192.0.2.1", "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP = %q, want %q", got, tt.want)
			}
		})
	}
}
