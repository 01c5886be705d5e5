//go:build unix

package impl

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl allows several nodes on one host to share the beacon port,
// which multicast delivery permits as long as every binder sets the flag.
func reuseControl(network, address string, c syscall.RawConn) error {
	var opErr error
	err := c.Control(func(fd uintptr) {
		if err := unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
			opErr = err
			return
		}
		// not every platform has it, and REUSEADDR alone is enough
		_ = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return opErr
}
