// Package testutil holds helpers shared by the package tests.
package testutil

import (
	"bytes"
	"sync"
)

// ThreadSafeBuffer is an io.Writer that can be shared between a log handler
// running on the control goroutine and the test goroutine reading it.
type ThreadSafeBuffer struct {
	buffer bytes.Buffer
	mutex  sync.Mutex
}

func (b *ThreadSafeBuffer) Write(p []byte) (n int, err error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.Write(p)
}

func (b *ThreadSafeBuffer) String() string {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.buffer.String()
}
