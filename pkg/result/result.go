// Package result turns supervisor outcomes into the gateway's success or
// failure result.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dukex/tunnelgate/pkg/supervisor"
	"github.com/xeipuuv/gojsonschema"
)

const (
	MessageTimeout         = "Service timeout"
	MessageInvalidOutput   = "Invalid service output"
	MessageOperationFailed = "Operation failed"
	MessageBusy            = "Service busy"
)

// Kind classifies a Result for the transport layer.
type Kind int

const (
	KindSuccess Kind = iota
	KindTimeout
	KindSpawnFailure
	KindInvalidOutput
	KindOperationFailure
	KindBusy
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindTimeout:
		return "timeout"
	case KindSpawnFailure:
		return "spawn_failure"
	case KindInvalidOutput:
		return "invalid_output"
	case KindOperationFailure:
		return "operation_failure"
	case KindBusy:
		return "busy"
	}

	return "unknown"
}

type Result struct {
	Kind    Kind
	Success bool
	Payload any
	Message string
	// RawOutput is only set for KindInvalidOutput.
	RawOutput string
}

// successSchema accepts records that report success either through
// status == "success" or success == true.
var successSchema = mustSchema(map[string]any{
	"type": "object",
	"anyOf": []any{
		map[string]any{
			"required":   []any{"status"},
			"properties": map[string]any{"status": map[string]any{"enum": []any{"success"}}},
		},
		map[string]any{
			"required":   []any{"success"},
			"properties": map[string]any{"success": map[string]any{"enum": []any{true}}},
		},
	},
})

func mustSchema(schema map[string]any) *gojsonschema.Schema {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(schema))
	if err != nil {
		panic(fmt.Errorf("compiling success schema: %w", err))
	}

	return compiled
}

// Normalize maps an Outcome to a Result. The child's exit code is not
// consulted: only the record it prints decides success.
func Normalize(outcome supervisor.Outcome) Result {
	switch outcome.State {
	case supervisor.StateTimedOut:
		return Result{Kind: KindTimeout, Message: MessageTimeout}
	case supervisor.StateSpawnFailed:
		return Result{Kind: KindSpawnFailure, Message: outcome.Reason}
	case supervisor.StateCompleted:
		return fromOutput(outcome.Output)
	}

	return Result{Kind: KindOperationFailure, Message: MessageOperationFailed}
}

// Busy is the result for an invocation rejected before spawning.
func Busy() Result {
	return Result{Kind: KindBusy, Message: MessageBusy}
}

func fromOutput(output string) Result {
	parsed, err := parseRecord(strings.TrimSpace(output))
	if err != nil || parsed == nil {
		return Result{Kind: KindInvalidOutput, Message: MessageInvalidOutput, RawOutput: output}
	}

	record, ok := parsed.(map[string]any)
	if !ok || !reportsSuccess(record) {
		return Result{Kind: KindOperationFailure, Message: failureMessage(record)}
	}

	if data, ok := record["data"]; ok && truthy(data) {
		return Result{Kind: KindSuccess, Success: true, Payload: data}
	}

	return Result{Kind: KindSuccess, Success: true, Payload: record}
}

// parseRecord decodes exactly one JSON value. Numbers are kept as
// json.Number so payloads are echoed back without float rounding.
func parseRecord(text string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}

	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after record")
	}

	return value, nil
}

func reportsSuccess(record map[string]any) bool {
	res, err := successSchema.Validate(gojsonschema.NewGoLoader(record))
	if err != nil {
		return false
	}

	return res.Valid()
}

func failureMessage(record map[string]any) string {
	for _, field := range []string{"message", "error"} {
		value, ok := record[field]
		if !ok || !truthy(value) {
			continue
		}

		if text, ok := value.(string); ok {
			return text
		}

		encoded, err := json.Marshal(value)
		if err == nil {
			return string(bytes.TrimSpace(encoded))
		}
	}

	return MessageOperationFailed
}

// truthy follows the loose truthiness the account binaries' output has always
// been read with: empty strings, zero, false and null count as absent.
func truthy(value any) bool {
	switch v := value.(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case json.Number:
		f, err := v.Float64()
		return err != nil || f != 0
	}

	return true
}
