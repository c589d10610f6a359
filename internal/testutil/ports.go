package testutil

import (
	"fmt"
	"net"
	"sync"
	"testing"
)

var (
	portMutex sync.Mutex
	usedPorts = make(map[int]struct{})
)

// GetRandomPort returns a free TCP port that has not been handed out before
// in this test binary.
func GetRandomPort(t *testing.T) int {
	t.Helper()
	for {
		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("Failed to get random port: %v", err)
		}
		p := listener.Addr().(*net.TCPAddr).Port
		if err := listener.Close(); err != nil {
			t.Fatalf("Failed to close listener: %v", err)
		}

		portMutex.Lock()
		_, taken := usedPorts[p]
		if !taken {
			usedPorts[p] = struct{}{}
		}
		portMutex.Unlock()
		if !taken {
			return p
		}
	}
}

// LoopbackAddress returns host:port on 127.0.0.1 for a fresh port.
func LoopbackAddress(t *testing.T) string {
	t.Helper()
	return fmt.Sprintf("127.0.0.1:%d", GetRandomPort(t))
}
