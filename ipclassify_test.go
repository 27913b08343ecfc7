package main

import (
	"net"
	"testing"
)

func TestIsPrivateAddress(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"127.255.255.255", true},
		{"10.0.0.1", true},
		{"10.255.0.1", true},
		{"172.16.0.1", true},
		{"172.31.255.254", true},
		{"172.15.0.1", false},
		{"172.32.0.1", false},
		{"192.168.1.1", true},
		{"192.169.0.1", false},
		{"203.0.113.5", false},
		{"8.8.8.8", false},
		{"0.0.0.0", false},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			var ip ClientIP
			copy(ip[:], net.ParseIP(tt.ip).To4())

			if got := isPrivateAddress(ip); got != tt.private {
				t.Errorf("isPrivateAddress(%s) = %v, want %v", tt.ip, got, tt.private)
			}
		})
	}
}

func TestClientIPFromUDPAddr(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5"), Port: 40000}
	ip, ok := clientIPFromUDPAddr(addr)
	if !ok {
		t.Fatal("expected IPv4 extraction to succeed")
	}
	if ip != (ClientIP{203, 0, 113, 5}) {
		t.Errorf("got octets %v", ip)
	}

	v6 := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 40000}
	if _, ok := clientIPFromUDPAddr(v6); ok {
		t.Error("expected IPv6 source to be rejected")
	}
}
