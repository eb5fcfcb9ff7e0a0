package supervisor

import (
	"context"
	"log/slog"
	"os/exec"
	"time"
)

// defaultWaitDelay bounds how long Wait keeps copying output after the child
// exits while a descendant still holds its pipes open.
const defaultWaitDelay = 2 * time.Second

type Supervisor struct {
	logger    *slog.Logger
	waitDelay time.Duration
}

func New(logger *slog.Logger) *Supervisor {
	return &Supervisor{
		logger:    logger.With("module", "supervisor"),
		waitDelay: defaultWaitDelay,
	}
}

// Run spawns the invocation's executable and blocks until exactly one of
// spawn failure, deadline expiry or natural exit has resolved it. Run never
// fails; every failure mode is encoded in the returned Outcome.
//
// The caller's context is only used for logging. Cancelling it does not stop
// the child; the deadline is the only cancellation trigger.
func (s *Supervisor) Run(ctx context.Context, inv Invocation) Outcome {
	ctx = context.WithoutCancel(ctx)

	if inv.Deadline <= 0 {
		inv.Deadline = DefaultDeadline
	}

	logger := s.logger.With("invocation_id", inv.ID, "executable", inv.Executable)

	var (
		state   latch
		output  outputBuffer
		outcome = make(chan Outcome, 1)
	)

	cmd := exec.Command(inv.Executable, inv.Arguments...)
	// Stdin stays nil so the child reads from the null device. Passing the
	// same writer for both streams makes them share a single pipe, which keeps
	// the combined output in arrival order.
	cmd.Stdout = &output
	cmd.Stderr = &output
	cmd.WaitDelay = s.waitDelay
	setProcessGroup(cmd)

	start := time.Now()

	if err := cmd.Start(); err != nil {
		state.resolve(StateSpawnFailed)
		logger.ErrorContext(ctx, "Failed to spawn binary", "error", err)

		return Outcome{
			InvocationID: inv.ID,
			State:        StateSpawnFailed,
			Reason:       err.Error(),
			Output:       output.String(),
			Elapsed:      time.Since(start),
		}
	}

	timer := time.AfterFunc(inv.Deadline, func() {
		if !state.resolve(StateTimedOut) {
			return
		}

		if err := killProcess(cmd); err != nil {
			logger.WarnContext(ctx, "Failed to kill timed out binary", "error", err)
		}

		elapsed := time.Since(start)
		logger.ErrorContext(ctx, "Binary timed out", "deadline", inv.Deadline, "elapsed", elapsed)

		outcome <- Outcome{
			InvocationID: inv.ID,
			State:        StateTimedOut,
			Output:       output.String(),
			Elapsed:      elapsed,
		}
	})

	go func() {
		waitErr := cmd.Wait()

		if !state.resolve(StateCompleted) {
			logger.DebugContext(ctx, "Ignoring exit of already resolved invocation",
				"state", state.current().String(), "error", waitErr)

			return
		}

		timer.Stop()

		exitCode := -1
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}

		elapsed := time.Since(start)
		logger.InfoContext(ctx, "Binary finished", "exit_code", exitCode, "elapsed", elapsed)

		outcome <- Outcome{
			InvocationID: inv.ID,
			State:        StateCompleted,
			ExitCode:     exitCode,
			Output:       output.String(),
			Elapsed:      elapsed,
		}
	}()

	return <-outcome
}
