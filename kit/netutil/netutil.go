// Package netutil provides network helpers for the dev server.
package netutil

import (
	"fmt"
	"net"
)

// GetFreePort returns preferred if it is available, otherwise an
// OS-assigned free port.
func GetFreePort(preferred int) (int, error) {
	if preferred > 0 {
		l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", preferred))
		if err == nil {
			l.Close()
			return preferred, nil
		}
	}

	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("netutil.GetFreePort: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
