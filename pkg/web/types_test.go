package web

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		str     string
		literal string
	}{
		{name: "string", input: `"alice"`, str: "alice", literal: "alice"},
		{name: "empty string", input: `""`, str: "", literal: ""},
		{name: "integer", input: `30`, str: "30", literal: "30"},
		{name: "float", input: `1.5`, str: "1.5", literal: "1.5"},
		{name: "zero", input: `0`, str: "", literal: "0"},
		{name: "null", input: `null`, str: "", literal: ""},
		{name: "false", input: `false`, str: "", literal: ""},
		{name: "true", input: `true`, str: "true", literal: "true"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			require.NoError(t, json.Unmarshal([]byte(tt.input), &v))

			assert.Equal(t, tt.str, v.String())
			assert.Equal(t, tt.literal, v.Literal())
		})
	}
}

func TestValue_RejectsContainers(t *testing.T) {
	var req UserRequest

	assert.Error(t, json.Unmarshal([]byte(`{"password":{"a":1}}`), &req))
	assert.Error(t, json.Unmarshal([]byte(`{"days":[1]}`), &req))
}
