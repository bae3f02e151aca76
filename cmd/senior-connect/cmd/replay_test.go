package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayCommand(t *testing.T) {
	dir := t.TempDir()
	recording := filepath.Join(dir, "bathroom.jsonl")
	lines := []string{
		`{"at":"2025-03-04T08:00:00Z","topic":"senior_connect/sensors/door","payload":{"type":"Access","location":"Bathroom Door","value":"ENTER"}}`,
		`{"at":"2025-03-04T08:00:03Z","topic":"senior_connect/sensors/pir","payload":{"type":"PIR","location":"Bathroom","value":"MOTION_DETECTED"}}`,
	}
	require.NoError(t, os.WriteFile(recording, []byte(strings.Join(lines, "\n")), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"replay", recording, "--env-file", filepath.Join(dir, "missing.env"), "--tail", "70s"})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	require.NoError(t, rootCmd.Execute())

	text := out.String()
	assert.Contains(t, text, "MINIMAL")
	assert.Contains(t, text, "MODERATE")
	assert.Contains(t, text, "CRITICAL")
	assert.Contains(t, text, "2 events routed")
	assert.Contains(t, text, "3 alerts")
}

func TestReplayCommand_MissingFile(t *testing.T) {
	rootCmd.SetArgs([]string{"replay", filepath.Join(t.TempDir(), "nope.jsonl"), "--env-file", ""})
	t.Cleanup(func() { rootCmd.SetArgs(nil) })

	assert.Error(t, rootCmd.Execute())
}
