// Package snapshot persists the portal state as one whole-collection
// document. The stores are persistence-format-agnostic; this package is
// the only place that knows how state leaves memory.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/erezmus/crewdesk/internal/board"
	"github.com/erezmus/crewdesk/internal/chat"
	"github.com/erezmus/crewdesk/internal/resource"
)

// Snapshot is the full persisted state. Save replaces the previous
// snapshot wholesale; there is no partial patch format.
type Snapshot struct {
	WorkItems []board.WorkItem           `json:"workItems"`
	Comments  map[string][]board.Comment `json:"comments"`
	Chats     []chat.Session             `json:"chats"`
	Resources []resource.Resource        `json:"resources"`
}

// Persister loads state at startup and accepts whole-state replacement
// after mutations.
type Persister interface {
	Load() (Snapshot, error)
	Save(Snapshot) error
}

// MemoryPersister keeps the snapshot in process memory. Used in tests
// and when persistence is disabled.
type MemoryPersister struct {
	mu   sync.Mutex
	snap Snapshot
	set  bool
}

// NewMemoryPersister creates an empty in-memory persister.
func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

func (m *MemoryPersister) Load() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.set {
		return Snapshot{}, nil
	}
	return m.snap, nil
}

func (m *MemoryPersister) Save(s Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = s
	m.set = true
	return nil
}

// FilePersister stores the snapshot as a JSON document on disk, written
// atomically via a temp file rename.
type FilePersister struct {
	mu     sync.Mutex
	path   string
	logger zerolog.Logger
}

// NewFilePersister creates a persister writing to path.
func NewFilePersister(path string, logger zerolog.Logger) *FilePersister {
	return &FilePersister{
		path:   path,
		logger: logger.With().Str("component", "snapshot").Logger(),
	}
}

// Load reads the snapshot file. A missing file is a fresh install, not
// an error.
func (f *FilePersister) Load() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		f.logger.Info().Str("path", f.path).Msg("no snapshot file, starting empty")
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}

	f.logger.Info().
		Str("path", f.path).
		Int("work_items", len(snap.WorkItems)).
		Int("chats", len(snap.Chats)).
		Int("resources", len(snap.Resources)).
		Msg("snapshot loaded")
	return snap, nil
}

// Save replaces the snapshot file with the given state.
func (f *FilePersister) Save(snap Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Capture assembles a snapshot from the live stores.
func Capture(items *board.Store, chats *chat.Store, resources *resource.Store) Snapshot {
	snap := Snapshot{
		Comments: items.AllComments(),
		Chats:    chats.All(),
		Resources: func() []resource.Resource {
			if resources == nil {
				return nil
			}
			return resources.Resources()
		}(),
	}
	all := items.ListAll()
	// ListAll is newest first; persist oldest first so Load preserves
	// creation order.
	for i := len(all) - 1; i >= 0; i-- {
		snap.WorkItems = append(snap.WorkItems, all[i])
	}
	return snap
}

// Restore pushes a snapshot into the live stores.
func Restore(snap Snapshot, items *board.Store, chats *chat.Store, resources *resource.Store) {
	items.Load(snap.WorkItems)
	items.LoadComments(snap.Comments)
	chats.Load(snap.Chats)
	if resources != nil {
		resources.Load(snap.Resources)
	}
}
