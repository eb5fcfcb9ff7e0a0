// Package events defines the lifecycle events the gateway publishes for each
// account binary invocation.
package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const Topic = "tunnelgate.invocations"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	InvocationFinishedEvent EventType = "invocation.finished"
	InvocationRejectedEvent EventType = "invocation.rejected"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}

// InvocationFinished reports the outcome of one account binary run. Arguments
// are deliberately absent since they carry account passwords.
type InvocationFinished struct {
	BaseEvent

	InvocationID string        `json:"invocation_id"`
	AccountKind  string        `json:"account_kind"`
	Operation    string        `json:"operation"`
	Executable   string        `json:"executable"`
	State        string        `json:"state"`
	ExitCode     int           `json:"exit_code"`
	Result       string        `json:"result"`
	Success      bool          `json:"success"`
	Duration     time.Duration `json:"duration"`
}

func NewInvocationFinished() InvocationFinished {
	return InvocationFinished{BaseEvent: newBaseEvent(InvocationFinishedEvent)}
}

func (e InvocationFinished) GetType() EventType {
	return InvocationFinishedEvent
}

// InvocationRejected reports a request turned away by admission control
// before any process was spawned.
type InvocationRejected struct {
	BaseEvent

	AccountKind string `json:"account_kind"`
	Operation   string `json:"operation"`
	Reason      string `json:"reason"`
}

func NewInvocationRejected() InvocationRejected {
	return InvocationRejected{BaseEvent: newBaseEvent(InvocationRejectedEvent)}
}

func (e InvocationRejected) GetType() EventType {
	return InvocationRejectedEvent
}
