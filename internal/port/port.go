// Package port hands out loopback TCP ports that are unique across the
// processes of one machine, so concurrently running test binaries can each
// launch wallet daemons without colliding.
package port

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

const (
	// DefaultStart is the first port handed out on a fresh machine.
	DefaultStart = 23100

	// DefaultLockTimeout bounds the wait for another process to release the
	// port file.
	DefaultLockTimeout = 30 * time.Second

	portFileName = "wallet-controller-port"
)

// Allocator hands out ports recorded in a shared port file.
type Allocator struct {
	// Dir holds the port file and its lock. Empty means os.TempDir().
	Dir string
	// Start is where numbering begins and wraps to.
	Start int
	// LockTimeout bounds the wait for the file lock.
	LockTimeout time.Duration

	mu sync.Mutex // guards the lock between goroutines of this process
}

var defaultAllocator = &Allocator{}

// NextAvailablePort returns a free port from the machine-wide sequence.
func NextAvailablePort() (int, error) {
	return defaultAllocator.Next()
}

// Next returns the first port after the last one handed out that accepts a
// listener on 127.0.0.1.
func (a *Allocator) Next() (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	dir := a.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	start := a.Start
	if start <= 0 {
		start = DefaultStart
	}
	timeout := a.LockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}

	lock := flock.New(filepath.Join(dir, portFileName+".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	locked, err := lock.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		return 0, fmt.Errorf("lock port file: %w", err)
	}
	if !locked {
		return 0, errors.New("lock port file: timed out")
	}
	defer lock.Unlock()

	portFile := filepath.Join(dir, portFileName)
	last := start - 1
	data, err := os.ReadFile(portFile)
	switch {
	case err == nil:
		n, perr := strconv.Atoi(strings.TrimSpace(string(data)))
		if perr != nil {
			return 0, fmt.Errorf("parse port file: %w", perr)
		}
		if n >= start && n < 65535 {
			last = n
		}
	case !os.IsNotExist(err):
		return 0, fmt.Errorf("read port file: %w", err)
	}

	next := last + 1
	for tries := 0; tries < 65535-start; tries++ {
		if next >= 65535 {
			next = start
		}
		if available(next) {
			if err := os.WriteFile(portFile, []byte(strconv.Itoa(next)), 0o600); err != nil {
				return 0, fmt.Errorf("update port file: %w", err)
			}
			return next, nil
		}
		next++
	}
	return 0, errors.New("no ports available for listening")
}

func available(port int) bool {
	l, err := net.Listen("tcp4", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)))
	if err != nil {
		return false
	}
	return l.Close() == nil
}
