package inventory

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInventory_Probe(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "apicreate-zivpn")
	require.NoError(t, os.WriteFile(present, []byte("#!/bin/sh\n"), 0o755))

	missing := filepath.Join(dir, "apidelete-zivpn")

	inv := New([]string{present, missing}, slog.Default())
	assert.Empty(t, inv.Snapshot())

	inv.Probe()
	snapshot := inv.Snapshot()

	require.Len(t, snapshot, 2)
	assert.True(t, snapshot[present].Available)
	assert.Empty(t, snapshot[present].Error)
	assert.False(t, snapshot[missing].Available)
	assert.NotEmpty(t, snapshot[missing].Error)
	assert.False(t, snapshot[missing].CheckedAt.IsZero())
}

func TestInventory_ProbeResolvesPath(t *testing.T) {
	inv := New([]string{"sh"}, slog.Default())
	inv.Probe()

	binary := inv.Snapshot()["sh"]
	assert.True(t, binary.Available)
	assert.True(t, filepath.IsAbs(binary.Path))
}

func TestInventory_StartInvalidSchedule(t *testing.T) {
	inv := New(nil, slog.Default())

	err := inv.Start("every now and then")
	assert.Error(t, err)

	inv.Stop()
}

func TestInventory_StartProbesImmediately(t *testing.T) {
	inv := New([]string{"sh"}, slog.Default())

	require.NoError(t, inv.Start("@every 1h"))
	t.Cleanup(inv.Stop)

	assert.True(t, inv.Snapshot()["sh"].Available)
}
