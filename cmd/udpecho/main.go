// Command udpecho is a minimal UDP echo server used to exercise the proxy:
// every datagram is sent back to its source unchanged.
package main

import (
	"flag"
	"fmt"
	"net"
	"os"
)

func main() {
	port := flag.Int("port", 7777, "port to listen on")
	flag.Parse()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: *port})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to bind port %d: %v\n", *port, err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("echoing on %s\n", conn.LocalAddr())

	buf := make([]byte, 64*1024)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			fmt.Fprintf(os.Stderr, "receive failed: %v\n", err)
			os.Exit(1)
		}

		if _, err := conn.WriteToUDP(buf[:n], addr); err != nil {
			fmt.Fprintf(os.Stderr, "echo to %s failed: %v\n", addr, err)
		}
	}
}
