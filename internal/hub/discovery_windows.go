//go:build windows

package hub

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// setBroadcastOption enables SO_BROADCAST on the discovery socket so the
// kernel permits a datagram addressed to 255.255.255.255. Passed as the
// Control func of a net.ListenConfig.
func setBroadcastOption(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_BROADCAST, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}
