package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dukex/tunnelgate/pkg/accounts"
	"github.com/dukex/tunnelgate/pkg/eventbus"
	"github.com/dukex/tunnelgate/pkg/events"
	"github.com/dukex/tunnelgate/pkg/otelhelper"
	"github.com/dukex/tunnelgate/pkg/result"
	"github.com/dukex/tunnelgate/pkg/supervisor"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/semaphore"
)

// Runner executes one invocation to completion.
type Runner interface {
	Run(ctx context.Context, inv supervisor.Invocation) supervisor.Outcome
}

// Lifecycle runs account commands. Each Execute call spawns at most one
// process and yields exactly one result.
type Lifecycle struct {
	runner         Runner
	deadline       time.Duration
	admission      *semaphore.Weighted
	tracer         trace.Tracer
	publisher      eventbus.EventPublisher
	publishTimeout time.Duration
	logger         *slog.Logger
}

// DefaultPublishTimeout bounds how long a response waits on the event bus.
const DefaultPublishTimeout = 2 * time.Second

type Option func(*Lifecycle)

// WithMaxConcurrent rejects invocations beyond n running children instead of
// spawning them. Zero or less leaves concurrency unbounded.
func WithMaxConcurrent(n int64) Option {
	return func(l *Lifecycle) {
		if n > 0 {
			l.admission = semaphore.NewWeighted(n)
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(l *Lifecycle) {
		l.tracer = tracer
	}
}

func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(l *Lifecycle) {
		l.publisher = publisher
	}
}

// WithPublishTimeout sets how long Execute waits for an event to be published.
// A slower publish keeps running in the background.
func WithPublishTimeout(d time.Duration) Option {
	return func(l *Lifecycle) {
		if d > 0 {
			l.publishTimeout = d
		}
	}
}

func NewLifecycle(runner Runner, deadline time.Duration, logger *slog.Logger, opts ...Option) *Lifecycle {
	l := &Lifecycle{
		runner:         runner,
		deadline:       deadline,
		tracer:         noop.NewTracerProvider().Tracer(""),
		publisher:      eventbus.NoopEventBus{},
		publishTimeout: DefaultPublishTimeout,
		logger:         logger.With("module", "lifecycle"),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

func (l *Lifecycle) Execute(ctx context.Context, cmd accounts.Command) result.Result {
	ctx, span := otelhelper.StartSpan(ctx, l.tracer, "account."+string(cmd.Operation),
		attribute.String(otelhelper.AccountKindKey, string(cmd.Kind)),
		attribute.String(otelhelper.OperationKey, string(cmd.Operation)),
		attribute.String(otelhelper.ExecutableKey, cmd.Executable),
	)
	defer span.End()

	// The request context belongs to the HTTP layer and may be recycled once
	// the response is written; the child and its events only keep the span.
	detached := trace.ContextWithSpanContext(context.Background(), span.SpanContext())
	logger := l.logger.With("account_kind", cmd.Kind, "operation", cmd.Operation)

	if l.admission != nil {
		if !l.admission.TryAcquire(1) {
			res := result.Busy()
			logger.WarnContext(ctx, "Rejected invocation, too many running binaries")
			otelhelper.SetError(span, errors.New(res.Message), attribute.String(otelhelper.ResultKey, res.Kind.String()))
			l.publishRejected(detached, cmd, res)

			return res
		}
		defer l.admission.Release(1)
	}

	inv := supervisor.NewInvocation(cmd.Executable, cmd.Arguments, l.deadline)
	span.SetAttributes(attribute.String(otelhelper.InvocationIDKey, inv.ID))

	outcome := l.runner.Run(detached, inv)
	res := result.Normalize(outcome)

	span.SetAttributes(
		attribute.String(otelhelper.StateKey, outcome.State.String()),
		attribute.Int(otelhelper.ExitCodeKey, outcome.ExitCode),
		attribute.String(otelhelper.ResultKey, res.Kind.String()),
	)

	switch res.Kind {
	case result.KindSuccess:
		logger.InfoContext(ctx, "Account operation succeeded", "invocation_id", inv.ID, "elapsed", outcome.Elapsed)
	case result.KindInvalidOutput:
		logger.ErrorContext(ctx, "Binary produced invalid output", "invocation_id", inv.ID, "output", res.RawOutput)
		otelhelper.SetError(span, errors.New(res.Message))
	default:
		logger.WarnContext(ctx, "Account operation failed", "invocation_id", inv.ID, "result", res.Kind.String(), "message", res.Message)
		otelhelper.SetError(span, errors.New(res.Message))
	}

	l.publishFinished(detached, cmd, outcome, res)

	return res
}

func (l *Lifecycle) publishFinished(ctx context.Context, cmd accounts.Command, outcome supervisor.Outcome, res result.Result) {
	event := events.NewInvocationFinished()
	event.InvocationID = outcome.InvocationID
	event.AccountKind = string(cmd.Kind)
	event.Operation = string(cmd.Operation)
	event.Executable = cmd.Executable
	event.State = outcome.State.String()
	event.ExitCode = outcome.ExitCode
	event.Result = res.Kind.String()
	event.Success = res.Success
	event.Duration = outcome.Elapsed

	l.publish(ctx, outcome.InvocationID, event)
}

func (l *Lifecycle) publishRejected(ctx context.Context, cmd accounts.Command, res result.Result) {
	event := events.NewInvocationRejected()
	event.AccountKind = string(cmd.Kind)
	event.Operation = string(cmd.Operation)
	event.Reason = res.Message

	l.publish(ctx, event.ID, event)
}

// publish waits at most publishTimeout so a stalled broker cannot hold the
// response past the child deadline.
func (l *Lifecycle) publish(ctx context.Context, key string, event eventbus.Event) {
	done := make(chan error, 1)

	go func() {
		done <- l.publisher.Publish(ctx, key, event)
	}()

	timer := time.NewTimer(l.publishTimeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			l.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "key", key, "error", err)
		}
	case <-timer.C:
		l.logger.WarnContext(ctx, "Event publish still pending, not waiting", "event_type", event.GetType(), "key", key,
			"timeout", l.publishTimeout)
	}
}
