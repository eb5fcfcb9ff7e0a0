// Package testutil provides fake account binaries for tests that spawn real
// child processes.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// recordArgs appends each argument on its own line to <binary>.args.
const recordArgs = `#!/bin/sh
for arg in "$@"; do printf '%s\n' "$arg" >> "$0.args"; done
`

// WriteBinary creates an executable shell script in dir that records its
// arguments and then runs body.
func WriteBinary(t *testing.T, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(recordArgs+body+"\n"), 0o755))

	return path
}

// RecordedArgs returns every argument the binary at path received, in order,
// or nil when it never ran.
func RecordedArgs(t *testing.T, path string) []string {
	t.Helper()

	content, err := os.ReadFile(path + ".args")
	if os.IsNotExist(err) {
		return nil
	}

	require.NoError(t, err)

	return strings.Split(strings.TrimSuffix(string(content), "\n"), "\n")
}

// WriteSecret stores a shared secret file in dir.
func WriteSecret(t *testing.T, dir, secret string) string {
	t.Helper()

	path := filepath.Join(dir, ".key")
	require.NoError(t, os.WriteFile(path, []byte(secret+"\n"), 0o600))

	return path
}
