package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// execute runs the CLI with args and returns stdout, stderr, and the error.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

// tempDB returns a fresh database path for one test.
func tempDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "tableside.db")
}

// runJSON runs a command with --format json against db, requires success,
// and decodes the data payload into T.
func runJSON[T any](t *testing.T, db string, args ...string) T {
	t.Helper()
	stdout, stderr, err := execute(t, append(args, "--db", db, "--format", "json")...)
	require.NoError(t, err, "stdout: %s\nstderr: %s", stdout, stderr)

	var resp struct {
		Status string `json:"status"`
		Data   T      `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "ok", resp.Status)
	return resp.Data
}

// runJSONError runs a command expected to fail and returns the error
// response and exit code.
func runJSONError(t *testing.T, db string, args ...string) (CLIError, int) {
	t.Helper()
	stdout, _, err := execute(t, append(args, "--db", db, "--format", "json")...)
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	require.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	return *resp.Error, GetExitCode(err)
}

// safeBuffer is a bytes.Buffer safe for concurrent writers.
type safeBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *safeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *safeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
