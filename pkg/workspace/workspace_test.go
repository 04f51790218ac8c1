package workspace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loomctl/loom/pkg/apperr"
)

func TestWriteRead_RoundTrips(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write("team1", "agent1", "notes/plan.md", "hello"))

	got, err := s.Read("team1", "agent1", "notes/plan.md")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestRead_MissingFileIsNotFound(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Read("team1", "agent1", "missing.md")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestResolve_RejectsPathTraversal(t *testing.T) {
	s := New(t.TempDir())
	err := s.Write("team1", "agent1", "../../etc/passwd", "pwned")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestResolve_RejectsAbsolutePath(t *testing.T) {
	s := New(t.TempDir())
	err := s.Write("team1", "agent1", "/etc/passwd", "pwned")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestResolve_RejectsNullByte(t *testing.T) {
	s := New(t.TempDir())
	err := s.Write("team1", "agent1", "file\x00.txt", "x")
	require.Error(t, err)
	assert.Equal(t, apperr.InvalidInput, apperr.KindOf(err))
}

func TestWrite_IsolatesAgentsByPath(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write("team1", "agentA", "secret.txt", "a's secret"))

	_, err := s.Read("team1", "agentB", "secret.txt")
	require.Error(t, err)
	assert.Equal(t, apperr.NotFound, apperr.KindOf(err))
}

func TestConcurrentWrite_SecondCallerSeesLockedError(t *testing.T) {
	s := New(t.TempDir())
	absPath, err := s.resolve("team1", "agent1", "busy.txt")
	require.NoError(t, err)

	_, ok := s.acquire(absPath, "agent1")
	require.True(t, ok)

	err = s.Write("team1", "agent2", "busy.txt", "new content")
	require.Error(t, err)
	assert.Equal(t, apperr.Locked, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "locked by agent agent1")
	assert.Contains(t, err.Error(), "try again in")
}

func TestList_ReturnsEntriesNonRecursively(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write("team1", "agent1", "a.txt", "1"))
	require.NoError(t, s.Write("team1", "agent1", "sub/b.txt", "2"))

	entries, err := s.List("team1", "agent1", "")
	require.NoError(t, err)

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Path)
	}
	assert.Contains(t, names, "a.txt")
	assert.Contains(t, names, "sub")
}

func TestDelete_RemovesFile(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Write("team1", "agent1", "a.txt", "1"))
	require.NoError(t, s.Delete("team1", "agent1", "a.txt"))

	_, err := s.Read("team1", "agent1", "a.txt")
	require.Error(t, err)
}

func TestBound_ScopesToTeamAndAgent(t *testing.T) {
	s := New(t.TempDir())
	b := s.Bind("team1", "agent1")

	require.NoError(t, b.WriteFile(context.Background(), "f.txt", "content"))
	got, err := b.ReadFile(context.Background(), "f.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", got)
}
