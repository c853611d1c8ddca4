package utils

import (
	"net/http/httptest"
	"testing"
)

func TestIPMatcher(t *testing.T) {
	m := NewIPMatcher([]string{"10.0.0.0/8", " 192.168.1.4 ", "::1", "not-an-ip"})

	tests := []struct {
		ip   string
		want bool
	}{
		{"10.20.30.40", true},
		{"192.168.1.4", true},
		{"192.168.1.5", false},
		{"::ffff:10.1.1.1", true},
		{"::1", true},
		{"garbage", false},
	}
	for _, tt := range tests {
		if got := m.Allow(tt.ip); got != tt.want {
			t.Errorf("Allow(%q) = %v, want %v", tt.ip, got, tt.want)
		}
	}

	if got := m.Rejected(); len(got) != 1 || got[0] != "not-an-ip" {
		t.Errorf("Rejected() = %v", got)
	}
	if !NewIPMatcher(nil).IsEmpty() {
		t.Error("matcher without entries should be empty")
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/readyz", nil)
	r.RemoteAddr = "172.16.0.9:51234"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	if got := ClientIP(r, false); got != "172.16.0.9" {
		t.Errorf("untrusted ClientIP = %q", got)
	}
	if got := ClientIP(r, true); got != "203.0.113.7" {
		t.Errorf("trusted ClientIP = %q", got)
	}

	r.Header.Del("X-Forwarded-For")
	r.Header.Set("X-Real-IP", "198.51.100.2")
	if got := ClientIP(r, true); got != "198.51.100.2" {
		t.Errorf("X-Real-IP ClientIP = %q", got)
	}
}
