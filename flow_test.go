package main

import (
	"bytes"
	"net"
	"testing"
	"time"
)

func TestUpstreamReaderRelaysToClient(t *testing.T) {
	// Stand-in game server
	gameConn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind game server socket: %v", err)
	}
	defer gameConn.Close()

	// Shared downstream socket and a client endpoint
	downstream, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind downstream socket: %v", err)
	}
	defer downstream.Close()

	client, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to bind client socket: %v", err)
	}
	defer client.Close()

	upstream, err := net.DialUDP("udp4", nil, gameConn.LocalAddr().(*net.UDPAddr))
	if err != nil {
		t.Fatalf("failed to dial game server: %v", err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		upstreamReader(downstream, upstream, client.LocalAddr().(*net.UDPAddr), newTestMetrics())
	}()

	payload := []byte("server says hello")
	if _, err := gameConn.WriteToUDP(payload, upstream.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatalf("game server send failed: %v", err)
	}

	if err := client.SetReadDeadline(time.Now().Add(2 * time.Second)); err != nil {
		t.Fatalf("failed to set deadline: %v", err)
	}
	buf := make([]byte, maxDatagramSize)
	n, from, err := client.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("client receive failed: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("payload mismatch: got %q", buf[:n])
	}
	if from.String() != downstream.LocalAddr().String() {
		t.Errorf("reply should come from the shared downstream socket, came from %s", from)
	}

	// Closing the upstream socket is the teardown signal: the reader exits
	if err := upstream.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reader did not exit after its socket was closed")
	}
}
