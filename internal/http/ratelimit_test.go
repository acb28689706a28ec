package http

import (
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginLimiterPerClient(t *testing.T) {
	rl := newLoginLimiter(3)
	defer rl.stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("10.1.1.1") {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	if rl.allow("10.1.1.1") {
		t.Fatal("fourth attempt should be throttled")
	}
	if !rl.allow("10.1.1.2") {
		t.Fatal("another client has its own bucket")
	}
	if rl.count() != 2 {
		t.Fatalf("count = %d, want 2", rl.count())
	}
}

func TestLoginLimiterDefaultRate(t *testing.T) {
	rl := newLoginLimiter(0)
	defer rl.stop()

	if rl.burst != DefaultLoginRatePerMinute {
		t.Fatalf("burst = %d, want %d", rl.burst, DefaultLoginRatePerMinute)
	}
}

func TestLoginLimiterCleanup(t *testing.T) {
	rl := newLoginLimiter(5)
	defer rl.stop()

	rl.allow("10.1.1.1")
	rl.cleanup(time.Now())
	if rl.count() != 1 {
		t.Fatal("recent client must survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * limiterCleanupInterval))
	if rl.count() != 0 {
		t.Fatalf("idle client not removed, count = %d", rl.count())
	}
}

func TestLoginLimiterStopTwice(t *testing.T) {
	rl := newLoginLimiter(5)
	rl.stop()
	rl.stop()
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{"direct", "203.0.113.7:5000", "", "", "203.0.113.7"},
		{"untrusted peer ignores forwarding", "203.0.113.7:5000", "198.51.100.1", "", "203.0.113.7"},
		{"trusted proxy xff", "10.0.0.5:80", "198.51.100.1, 10.0.0.5", "", "198.51.100.1"},
		{"trusted proxy x-real-ip", "127.0.0.1:80", "", "198.51.100.2", "198.51.100.2"},
		{"trusted proxy bad header", "127.0.0.1:80", "garbage", "", "127.0.0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}
			if got := extractClientIP(r); got != tt.want {
				t.Errorf("extractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
