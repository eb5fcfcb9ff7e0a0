// Package web exposes account lifecycle operations over HTTP through two
// adapters: legacy query endpoints and enterprise JSON endpoints.
package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"

	MessageInvalidParameter = "Invalid parameter"
	MessageInvalidPayload   = "Invalid payload"
)

var errUnsupportedValue = errors.New("unsupported JSON value")

// Response is the body of every dispatched request, whichever adapter
// received it. Detail is only present for unparseable binary output.
type Response struct {
	Status  string  `json:"status"`
	Data    any     `json:"data,omitempty"`
	Message string  `json:"message,omitempty"`
	Detail  *string `json:"detail,omitempty"`
}

// PayloadError is the error body of the enterprise adapter.
type PayloadError struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// UserRequest is the enterprise request body. Each endpoint reads the
// subset of fields it needs.
type UserRequest struct {
	Password Value `json:"password"`
	Days     Value `json:"days"`
	IPLimit  Value `json:"ip_limit"`
	Duration Value `json:"duration"`
}

// Value accepts a JSON string or number and stores its text form. String
// treats falsy values (null, false, 0 and "") as missing; Literal keeps a
// zero so fields whose default only covers an absent value can pass it on.
type Value struct {
	text  string
	falsy bool
}

func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)

	switch {
	case len(trimmed) == 0, bytes.Equal(trimmed, []byte("null")), bytes.Equal(trimmed, []byte("false")):
		*v = Value{falsy: true}
	case bytes.Equal(trimmed, []byte("true")):
		*v = Value{text: "true"}
	case trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}

		*v = Value{text: s, falsy: s == ""}
	case trimmed[0] == '-' || (trimmed[0] >= '0' && trimmed[0] <= '9'):
		f, err := strconv.ParseFloat(string(trimmed), 64)
		if err != nil {
			return err
		}

		*v = Value{text: strconv.FormatFloat(f, 'f', -1, 64), falsy: f == 0}
	default:
		return errUnsupportedValue
	}

	return nil
}

func (v Value) String() string {
	if v.falsy {
		return ""
	}

	return v.text
}

// Literal returns the decoded text, including a zero. It is empty only for
// null, false, "" or an absent field.
func (v Value) Literal() string {
	return v.text
}
