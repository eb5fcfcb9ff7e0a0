package supervisor

import (
	"bytes"
	"sync"
	"sync/atomic"
)

// latch holds the state of one invocation. Only the first resolve call moves
// it out of StatePending; every later call reports false and must be a no-op
// for the caller.
type latch struct {
	state atomic.Int32
}

func (l *latch) resolve(to State) bool {
	return l.state.CompareAndSwap(int32(StatePending), int32(to))
}

func (l *latch) current() State {
	return State(l.state.Load())
}

// outputBuffer collects the child's stdout and stderr. It is read while the
// copy goroutine may still be writing, so access is serialized.
type outputBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *outputBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *outputBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}
