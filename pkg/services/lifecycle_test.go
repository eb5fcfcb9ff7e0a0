package services_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukex/tunnelgate/pkg/accounts"
	"github.com/dukex/tunnelgate/pkg/eventbus"
	"github.com/dukex/tunnelgate/pkg/events"
	"github.com/dukex/tunnelgate/pkg/mocks"
	"github.com/dukex/tunnelgate/pkg/result"
	"github.com/dukex/tunnelgate/pkg/services"
	"github.com/dukex/tunnelgate/pkg/supervisor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeRunner struct {
	mu          sync.Mutex
	invocations []supervisor.Invocation
	outcome     supervisor.Outcome
	release     chan struct{}
	started     chan struct{}
}

func (r *fakeRunner) Run(_ context.Context, inv supervisor.Invocation) supervisor.Outcome {
	r.mu.Lock()
	r.invocations = append(r.invocations, inv)
	r.mu.Unlock()

	if r.started != nil {
		r.started <- struct{}{}
	}

	if r.release != nil {
		<-r.release
	}

	outcome := r.outcome
	outcome.InvocationID = inv.ID

	return outcome
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

var vmessCreate = accounts.Command{
	Kind:       accounts.KindVMess,
	Operation:  accounts.OpCreate,
	Executable: "apicreate",
	Arguments:  []string{"vmess", "alice", "30", "1"},
}

func TestLifecycle_Execute(t *testing.T) {
	runner := &fakeRunner{outcome: supervisor.Outcome{
		State:   supervisor.StateCompleted,
		Output:  `{"status":"success","data":{"user":"alice"}}`,
		Elapsed: 15 * time.Millisecond,
	}}
	publisher := &recordingPublisher{}

	lifecycle := services.NewLifecycle(runner, 3*time.Second, slog.Default(), services.WithPublisher(publisher))

	res := lifecycle.Execute(context.Background(), vmessCreate)

	assert.Equal(t, result.KindSuccess, res.Kind)
	assert.Equal(t, map[string]any{"user": "alice"}, res.Payload)

	require.Len(t, runner.invocations, 1)
	inv := runner.invocations[0]
	assert.Equal(t, "apicreate", inv.Executable)
	assert.Equal(t, []string{"vmess", "alice", "30", "1"}, inv.Arguments)
	assert.Equal(t, 3*time.Second, inv.Deadline)

	require.Len(t, publisher.events, 1)
	finished, ok := publisher.events[0].(events.InvocationFinished)
	require.True(t, ok)
	assert.Equal(t, inv.ID, finished.InvocationID)
	assert.Equal(t, "vmess", finished.AccountKind)
	assert.Equal(t, "create", finished.Operation)
	assert.Equal(t, "completed", finished.State)
	assert.Equal(t, "success", finished.Result)
	assert.True(t, finished.Success)
	assert.Equal(t, 15*time.Millisecond, finished.Duration)
}

func TestLifecycle_ExecuteFailures(t *testing.T) {
	tests := []struct {
		name    string
		outcome supervisor.Outcome
		kind    result.Kind
		message string
	}{
		{
			name:    "timeout",
			outcome: supervisor.Outcome{State: supervisor.StateTimedOut},
			kind:    result.KindTimeout,
			message: "Service timeout",
		},
		{
			name:    "spawn failure",
			outcome: supervisor.Outcome{State: supervisor.StateSpawnFailed, Reason: "permission denied"},
			kind:    result.KindSpawnFailure,
			message: "permission denied",
		},
		{
			name:    "invalid output",
			outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: "boom"},
			kind:    result.KindInvalidOutput,
			message: "Invalid service output",
		},
		{
			name:    "operation failure",
			outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: `{"status":"fail","message":"quota exceeded"}`},
			kind:    result.KindOperationFailure,
			message: "quota exceeded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			tracer := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)).Tracer("test")

			lifecycle := services.NewLifecycle(&fakeRunner{outcome: tt.outcome}, time.Second, slog.Default(),
				services.WithTracer(tracer))

			res := lifecycle.Execute(context.Background(), vmessCreate)

			assert.Equal(t, tt.kind, res.Kind)
			assert.False(t, res.Success)
			assert.Equal(t, tt.message, res.Message)

			spans := recorder.Ended()
			require.Len(t, spans, 1)
			assert.Equal(t, "account.create", spans[0].Name())
			assert.Equal(t, tt.message, spans[0].Status().Description)
		})
	}
}

func TestLifecycle_PublishErrorDoesNotChangeResult(t *testing.T) {
	runner := &fakeRunner{outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: `{"success":true}`}}

	bus := &mocks.MockEventBus{}
	bus.On("Publish", mock.Anything, mock.AnythingOfType("string"), mock.AnythingOfType("events.InvocationFinished")).
		Return(errors.New("broker down")).Once()

	lifecycle := services.NewLifecycle(runner, time.Second, slog.Default(), services.WithPublisher(bus))

	res := lifecycle.Execute(context.Background(), vmessCreate)
	assert.True(t, res.Success)

	bus.AssertExpectations(t)
}

type blockingPublisher struct {
	release chan struct{}
}

func (p *blockingPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	<-p.release

	return nil
}

func TestLifecycle_StalledPublisherDoesNotDelayResult(t *testing.T) {
	runner := &fakeRunner{outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: `{"success":true}`}}
	publisher := &blockingPublisher{release: make(chan struct{})}
	t.Cleanup(func() { close(publisher.release) })

	lifecycle := services.NewLifecycle(runner, time.Second, slog.Default(),
		services.WithPublisher(publisher), services.WithPublishTimeout(50*time.Millisecond))

	start := time.Now()
	res := lifecycle.Execute(context.Background(), vmessCreate)

	assert.True(t, res.Success)
	assert.Less(t, time.Since(start), time.Second)
}

func TestLifecycle_MaxConcurrent(t *testing.T) {
	runner := &fakeRunner{
		outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: `{"success":true}`},
		release: make(chan struct{}),
		started: make(chan struct{}, 1),
	}
	publisher := &recordingPublisher{}

	lifecycle := services.NewLifecycle(runner, time.Second, slog.Default(),
		services.WithMaxConcurrent(1), services.WithPublisher(publisher))

	first := make(chan result.Result, 1)

	go func() {
		first <- lifecycle.Execute(context.Background(), vmessCreate)
	}()

	<-runner.started

	busy := lifecycle.Execute(context.Background(), vmessCreate)
	assert.Equal(t, result.KindBusy, busy.Kind)
	assert.Equal(t, "Service busy", busy.Message)

	close(runner.release)
	assert.True(t, (<-first).Success)

	runner.started = nil

	again := lifecycle.Execute(context.Background(), vmessCreate)
	assert.True(t, again.Success)

	assert.Len(t, runner.invocations, 2)

	var rejected int

	for _, event := range publisher.events {
		if event.GetType() == events.InvocationRejectedEvent {
			rejected++
		}
	}

	assert.Equal(t, 1, rejected)
}

func TestLifecycle_UnboundedByDefault(t *testing.T) {
	runner := &fakeRunner{
		outcome: supervisor.Outcome{State: supervisor.StateCompleted, Output: `{"success":true}`},
		release: make(chan struct{}),
		started: make(chan struct{}, 8),
	}

	lifecycle := services.NewLifecycle(runner, time.Second, slog.Default(), services.WithMaxConcurrent(0))

	var wg sync.WaitGroup

	results := make([]result.Result, 8)

	for i := range results {
		wg.Add(1)

		go func() {
			defer wg.Done()

			cmd := vmessCreate
			cmd.Arguments = []string{"vmess", fmt.Sprintf("user%d", i), "30", "1"}
			results[i] = lifecycle.Execute(context.Background(), cmd)
		}()
	}

	for range results {
		<-runner.started
	}

	close(runner.release)
	wg.Wait()

	for _, res := range results {
		assert.True(t, res.Success)
	}
}

func TestIsValidationError(t *testing.T) {
	assert.True(t, services.IsValidationError(fmt.Errorf("%w: user", accounts.ErrInvalidFields)))
	assert.True(t, services.IsValidationError(accounts.ErrUnsupportedKind))
	assert.False(t, services.IsValidationError(errors.New("boom")))
}
