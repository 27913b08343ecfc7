package main

import (
	"encoding/binary"
	"net"
)

// ClientIP is an IPv4 address in network byte order, as it appears both on
// the control wire and in the source address of a datagram.
type ClientIP [4]byte

func (ip ClientIP) String() string {
	return net.IP(ip[:]).String()
}

// clientIPFromUDPAddr extracts the IPv4 octets of a UDP source address.
// Returns false for non-IPv4 sources.
func clientIPFromUDPAddr(addr *net.UDPAddr) (ClientIP, bool) {
	var ip ClientIP
	v4 := addr.IP.To4()
	if v4 == nil {
		return ip, false
	}
	copy(ip[:], v4)
	return ip, true
}

// isPrivateAddress reports whether the IPv4 lies in 127.0.0.0/8, 10.0.0.0/8,
// 172.16.0.0/12 or 192.168.0.0/16. Private sources bypass admission.
func isPrivateAddress(ip ClientIP) bool {
	v := binary.BigEndian.Uint32(ip[:])
	return (v&0xFF000000) == 127<<24 ||
		(v&0xFF000000) == 10<<24 ||
		(v&0xFFF00000) == 172<<24|16<<16 ||
		(v&0xFFFF0000) == 192<<24|168<<16
}
