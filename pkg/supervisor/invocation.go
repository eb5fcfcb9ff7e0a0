// Package supervisor runs account binaries as child processes under a hard
// wall-clock deadline and reports exactly one Outcome per Invocation.
package supervisor

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// DefaultDeadline applies to invocations created without a positive deadline.
const DefaultDeadline = 20 * time.Second

// Invocation describes one run of an external command. Arguments are passed
// to the program verbatim and never re-parsed by a shell.
type Invocation struct {
	ID         string
	Executable string
	Arguments  []string
	Deadline   time.Duration
}

func NewInvocation(executable string, arguments []string, deadline time.Duration) Invocation {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}

	return Invocation{
		ID:         uuid.NewString(),
		Executable: executable,
		Arguments:  slices.Clone(arguments),
		Deadline:   deadline,
	}
}

// State is the lifecycle position of an invocation. Pending is the only
// non-terminal state.
type State int32

const (
	StatePending State = iota
	StateCompleted
	StateTimedOut
	StateSpawnFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateCompleted:
		return "completed"
	case StateTimedOut:
		return "timed_out"
	case StateSpawnFailed:
		return "spawn_failed"
	}

	return "unknown"
}

// Outcome is the terminal result of an Invocation.
type Outcome struct {
	InvocationID string
	State        State
	ExitCode     int    // set when State is StateCompleted
	Reason       string // set when State is StateSpawnFailed
	Output       string // stdout and stderr in arrival order, partial on timeout
	Elapsed      time.Duration
}
