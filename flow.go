package main

import (
	"errors"
	"net"
	"time"
)

// maxDatagramSize is the fixed receive buffer size on both legs, enough for
// any UDP payload.
const maxDatagramSize = 64 * 1024

// FlowKey identifies a unique client UDP endpoint.
type FlowKey struct {
	IP   ClientIP
	Port uint16
}

func flowKeyFromUDPAddr(addr *net.UDPAddr) (FlowKey, bool) {
	ip, ok := clientIPFromUDPAddr(addr)
	if !ok {
		return FlowKey{}, false
	}
	return FlowKey{IP: ip, Port: uint16(addr.Port)}, true
}

// flowState is the per-client relay state. It is owned by the forwarder
// goroutine; the upstream reader never sees it, only copies of its fields.
type flowState struct {
	clientAddr *net.UDPAddr
	upstream   *net.UDPConn
	lastSeen   time.Time
}

// close tears the flow down. Closing the upstream socket is the only
// termination signal the reader gets: its blocking read fails and it exits.
func (s *flowState) close() {
	if err := s.upstream.Close(); err != nil {
		logger.Warnf("failed to close upstream socket for %s: %v", s.clientAddr, err)
	}
}

// FlowInfo is the read-only view of a flow published to the ops API.
type FlowInfo struct {
	Client    string    `json:"client"`
	LocalPort int       `json:"local_port"`
	LastSeen  time.Time `json:"last_seen"`
}

// upstreamReader drains one flow's upstream socket and relays every datagram
// to the client over the shared downstream socket. It deliberately captures
// only the client address and the two sockets, never the flow table entry:
// the forwarder may erase the entry at any time, and the reader's lifecycle
// is anchored solely to its socket.
func upstreamReader(downstream *net.UDPConn, upstream *net.UDPConn, clientAddr *net.UDPAddr, metrics *Metrics) {
	buf := make([]byte, maxDatagramSize)

	for {
		n, err := upstream.Read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				// Expected teardown signal
				return
			}
			logger.Warnf("upstream read for %s failed: %v", clientAddr, err)
			return
		}
		if n == 0 {
			return
		}

		if _, err := downstream.WriteToUDP(buf[:n], clientAddr); err != nil {
			// UDP loss is acceptable; keep draining the socket
			logger.Infof("send to client %s failed: %v", clientAddr, err)
			continue
		}

		metrics.DatagramsForwarded.WithLabelValues("downstream").Inc()
		metrics.BytesForwarded.WithLabelValues("downstream").Add(float64(n))
	}
}
