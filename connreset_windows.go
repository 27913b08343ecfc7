//go:build windows

package main

import (
	"net"
	"unsafe"

	"golang.org/x/sys/windows"
)

// sioUDPConnReset is the SIO_UDP_CONNRESET ioctl code.
const sioUDPConnReset = windows.IOC_IN | windows.IOC_VENDOR | 12

// tolerateUnreachable disables the behavior where an ICMP port-unreachable
// elicited by an earlier send surfaces as an error on the next receive.
// Without this, one unreachable client could kill the shared listener.
func tolerateUnreachable(conn *net.UDPConn) error {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return err
	}

	var ioctlErr error
	err = rawConn.Control(func(fd uintptr) {
		enabled := uint32(0)
		var returned uint32
		ioctlErr = windows.WSAIoctl(
			windows.Handle(fd),
			sioUDPConnReset,
			(*byte)(unsafe.Pointer(&enabled)),
			uint32(unsafe.Sizeof(enabled)),
			nil,
			0,
			&returned,
			nil,
			0,
		)
	})
	if err != nil {
		return err
	}
	return ioctlErr
}
