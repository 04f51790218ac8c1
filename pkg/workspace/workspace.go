// Package workspace implements each agent's private file storage: a
// directory tree rooted under a per-team, per-agent base path, with every
// path checked against traversal and symlink escape before touching disk,
// and short cooperative locks so concurrent tool calls don't interleave
// writes to the same file.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/loomctl/loom/pkg/apperr"
)

const lockTTL = 30 * time.Second

// Store roots one agent's files under root/teamID/agentID.
type Store struct {
	root string

	mu    sync.Mutex
	locks map[string]lockHolder
}

type lockHolder struct {
	agentID  string
	acquired time.Time
}

func New(root string) *Store {
	return &Store{root: root, locks: map[string]lockHolder{}}
}

// resolve validates path and returns the absolute on-disk location for
// teamID/agentID's workspace. It rejects absolute paths, ".." segments,
// null bytes, and any path that resolves through a symlink outside the
// agent's base directory.
func (s *Store) resolve(teamID, agentID, relPath string) (string, error) {
	if strings.ContainsRune(relPath, 0) {
		return "", apperr.InvalidInputf("path contains a null byte")
	}
	if filepath.IsAbs(relPath) {
		return "", apperr.InvalidInputf("path must be relative")
	}
	for _, seg := range strings.Split(filepath.ToSlash(relPath), "/") {
		if seg == ".." {
			return "", apperr.InvalidInputf("path must not contain .. segments")
		}
	}

	base := filepath.Join(s.root, teamID, agentID)
	cleaned := filepath.Join(base, filepath.Clean(string(filepath.Separator)+relPath))
	if cleaned != base && !strings.HasPrefix(cleaned, base+string(filepath.Separator)) {
		return "", apperr.InvalidInputf("path escapes the workspace")
	}

	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		if resolved != base && !strings.HasPrefix(resolved, base+string(filepath.Separator)) {
			return "", apperr.InvalidInputf("path escapes the workspace through a symlink")
		}
	} else if !os.IsNotExist(err) {
		return "", apperr.Wrap(apperr.Internal, err, "resolve workspace path")
	}

	return cleaned, nil
}

// acquire takes a short cooperative lock on an absolute path, sweeping any
// lock older than lockTTL as abandoned. Returns the current holder and
// ok=false if the path is already locked by someone else.
func (s *Store) acquire(absPath, agentID string) (holder lockHolder, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if held, exists := s.locks[absPath]; exists && now.Sub(held.acquired) < lockTTL {
		return held, false
	}
	s.locks[absPath] = lockHolder{agentID: agentID, acquired: now}
	return lockHolder{}, true
}

// lockedErr builds the 423 observation the ReAct loop and the HTTP layer
// both use: which agent holds the lock and how many seconds remain on its
// TTL before it is swept as abandoned.
func lockedErr(relPath string, held lockHolder) error {
	remaining := lockTTL - time.Since(held.acquired)
	if remaining < 0 {
		remaining = 0
	}
	return apperr.Lockedf("%q locked by agent %s, try again in %d seconds", relPath, held.agentID, int(remaining.Seconds()+1))
}

func (s *Store) release(absPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, absPath)
}

func (s *Store) Read(teamID, agentID, relPath string) (string, error) {
	absPath, err := s.resolve(teamID, agentID, relPath)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperr.NotFoundf("file %q not found", relPath)
		}
		return "", apperr.Wrap(apperr.Internal, err, "read workspace file")
	}
	return string(data), nil
}

func (s *Store) Write(teamID, agentID, relPath, content string) error {
	absPath, err := s.resolve(teamID, agentID, relPath)
	if err != nil {
		return err
	}
	if held, ok := s.acquire(absPath, agentID); !ok {
		return lockedErr(relPath, held)
	}
	defer s.release(absPath)

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return apperr.Wrap(apperr.Internal, err, "create workspace directory")
	}
	if err := os.WriteFile(absPath, []byte(content), 0o644); err != nil {
		return apperr.Wrap(apperr.Internal, err, "write workspace file")
	}
	return nil
}

type Entry struct {
	Path  string
	IsDir bool
	Size  int64
}

// List returns entries directly under relPath (non-recursive), sorted by
// name as returned by the filesystem.
func (s *Store) List(teamID, agentID, relPath string) ([]Entry, error) {
	absPath, err := s.resolve(teamID, agentID, relPath)
	if err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperr.Wrap(apperr.Internal, err, "list workspace directory")
	}

	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		info, err := de.Info()
		if err != nil {
			continue
		}
		out = append(out, Entry{
			Path:  filepath.Join(relPath, de.Name()),
			IsDir: de.IsDir(),
			Size:  info.Size(),
		})
	}
	return out, nil
}

func (s *Store) Delete(teamID, agentID, relPath string) error {
	absPath, err := s.resolve(teamID, agentID, relPath)
	if err != nil {
		return err
	}
	if held, ok := s.acquire(absPath, agentID); !ok {
		return lockedErr(relPath, held)
	}
	defer s.release(absPath)

	if err := os.Remove(absPath); err != nil {
		if os.IsNotExist(err) {
			return apperr.NotFoundf("file %q not found", relPath)
		}
		return apperr.Wrap(apperr.Internal, err, "delete workspace file")
	}
	return nil
}

// Bound adapts a Store to a single team/agent pair, matching the narrow
// FileStore interface the tool registry expects.
type Bound struct {
	store         *Store
	TeamID, Agent string
}

func (s *Store) Bind(teamID, agentID string) *Bound {
	return &Bound{store: s, TeamID: teamID, Agent: agentID}
}

func (b *Bound) ReadFile(ctx context.Context, path string) (string, error) {
	return b.store.Read(b.TeamID, b.Agent, path)
}

func (b *Bound) WriteFile(ctx context.Context, path, content string) error {
	return b.store.Write(b.TeamID, b.Agent, path, content)
}

func (b *Bound) ListFiles(ctx context.Context, path string) (string, error) {
	entries, err := b.store.List(b.TeamID, b.Agent, path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "(empty)", nil
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		kind := "file"
		if e.IsDir {
			kind = "dir"
		}
		lines = append(lines, fmt.Sprintf("%s\t%s\t%d bytes", kind, e.Path, e.Size))
	}
	return strings.Join(lines, "\n"), nil
}
