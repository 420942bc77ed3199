package client

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bytedance/sonic"

	"tasktrack/domain"
)

// SnapshotStore keeps the last known task list per owner in a JSON
// file under the data directory. It is a fallback, not a source of
// truth: the store reads it only when the remote fetch fails and
// overwrites it after every mutation.
type SnapshotStore struct {
	mu    sync.Mutex
	path  string
	snaps map[string][]domain.Task
}

// OpenSnapshotStore loads (or initializes) the snapshot file in
// dataDir.
func OpenSnapshotStore(dataDir string) (*SnapshotStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &SnapshotStore{
		path:  filepath.Join(dataDir, "snapshots.json"),
		snaps: map[string][]domain.Task{},
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	if err := sonic.Unmarshal(data, &s.snaps); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the owner's snapshot and whether one exists. The
// returned slice is a copy; mutating it does not touch the store.
func (s *SnapshotStore) Load(owner string) ([]domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tasks, ok := s.snaps[owner]
	if !ok {
		return nil, false
	}
	out := make([]domain.Task, len(tasks))
	copy(out, tasks)
	return out, true
}

// Save replaces the owner's snapshot and rewrites the file.
func (s *SnapshotStore) Save(owner string, tasks []domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make([]domain.Task, len(tasks))
	copy(snap, tasks)
	s.snaps[owner] = snap

	data, err := sonic.Marshal(s.snaps)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
