//go:build !unix

package impl

import "syscall"

func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
