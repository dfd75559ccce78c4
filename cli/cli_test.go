package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"beacon/offline"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVAPIDKeysCommand(t *testing.T) {
	out, err := execute(t, "vapid-keys")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "VAPID_PUBLIC_KEY="))
	assert.True(t, strings.HasPrefix(lines[1], "VAPID_PRIVATE_KEY="))
}

func TestAgentSendQueuesWhileEngineIsDown(t *testing.T) {
	down := httptest.NewServer(nil)
	url := down.URL
	down.Close()
	queue := filepath.Join(t.TempDir(), "agent.db")

	out, err := execute(t, "agent", "send",
		"--queue", queue,
		"--engine", url,
		"--user", "u1",
		"--category", "mention",
		"--message", "Dana mentioned you",
		"--actor", "dana")
	require.NoError(t, err)
	assert.Contains(t, out, "queued")

	store, err := offline.Open(queue)
	require.NoError(t, err)
	defer store.Close()
	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestAgentSendRequiresActor(t *testing.T) {
	_, err := execute(t, "agent", "send",
		"--queue", filepath.Join(t.TempDir(), "agent.db"),
		"--user", "u1",
		"--message", "hi")
	assert.ErrorIs(t, err, offline.ErrUnauthenticated)
}
