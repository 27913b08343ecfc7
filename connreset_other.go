//go:build !windows

package main

import "net"

// tolerateUnreachable is a no-op outside Windows: the receive path does not
// surface ICMP port-unreachable on an unconnected UDP socket there.
func tolerateUnreachable(_ *net.UDPConn) error {
	return nil
}
