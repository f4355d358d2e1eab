package probe

import (
	"fmt"
	"net"
)

// FindFreePort scans the half-open range [start,end) and returns the first
// port that accepts a local bind. Allocation is best-effort: the port is
// released again before the caller uses it, so two concurrent scans can race
// on the same port. The contract only requires that the chosen port was
// bindable immediately before use.
func FindFreePort(start, end int) (int, error) {
	for port := start; port < end; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err != nil {
			continue
		}
		listener.Close()
		return port, nil
	}
	return 0, fmt.Errorf("no free port in range [%d,%d)", start, end)
}
