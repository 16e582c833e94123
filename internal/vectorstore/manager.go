package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"contractrag/internal/domain"
	"contractrag/internal/logging"
)

// ChunkSource produces the chunks to index when a persisted index has to be rebuilt.
type ChunkSource func(ctx context.Context) ([]domain.Chunk, error)

// Manager owns one workspace directory and the current index snapshot for it.
// Queries read Current without locking; Rebuild and Delete are serialized.
type Manager struct {
	dir    string
	logger *slog.Logger

	mu      sync.Mutex
	gen     uint64 // bumped under mu by Rebuild and Delete
	current atomic.Pointer[Index]
	loads   singleflight.Group
}

// NewManager returns a manager for dir. Nothing is read until Open.
func NewManager(dir string, logger *slog.Logger) *Manager {
	return &Manager{dir: dir, logger: logging.OrDiscard(logger)}
}

// Dir returns the workspace directory.
func (m *Manager) Dir() string { return m.dir }

// Current returns the active snapshot, or nil before the first build or load.
func (m *Manager) Current() *Index { return m.current.Load() }

// Rebuild builds a new snapshot from chunks, persists it and makes it current.
// A failed save is logged; the in-memory snapshot is still installed.
func (m *Manager) Rebuild(ctx context.Context, chunks []domain.Chunk, embedder domain.Embedder) (*Index, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx, err := Build(ctx, chunks, embedder)
	if err != nil {
		return nil, err
	}
	if reason := idx.FallbackReason(); reason != "" {
		m.logger.Warn("embedding backend unavailable, index built with hashing embedder", "reason", reason)
	}
	if err := idx.Save(ctx, m.dir); err != nil {
		m.logger.Error("index save failed", "dir", m.dir, "error", err)
	}
	m.gen++
	m.current.Store(idx)
	m.logger.Info("index rebuilt", "chunks", idx.Len(), "embedder", idx.EmbedderName(), "dir", m.dir)
	return idx, nil
}

// Open loads the persisted index and makes it current. Concurrent callers
// share a single load.
func (m *Manager) Open(ctx context.Context, embedder domain.Embedder) (*Index, error) {
	v, err, _ := m.loads.Do("open", func() (any, error) {
		gen := m.generation()
		idx, err := Load(ctx, m.dir, embedder)
		if err != nil {
			return nil, err
		}
		if !m.install(idx, gen) {
			return nil, fmt.Errorf("%w: index changed while loading", domain.ErrIndexLoad)
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

func (m *Manager) generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

// install makes idx current unless a Rebuild or Delete happened after gen was read.
func (m *Manager) install(idx *Index, gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		return false
	}
	m.current.Store(idx)
	return true
}

// LoadOrRebuild opens the persisted index, rebuilding it from source when it
// is missing or unreadable.
func (m *Manager) LoadOrRebuild(ctx context.Context, embedder domain.Embedder, source ChunkSource) (*Index, error) {
	idx, err := m.Open(ctx, embedder)
	if err == nil {
		return idx, nil
	}
	if !errors.Is(err, domain.ErrIndexLoad) || source == nil {
		return nil, err
	}
	m.logger.Warn("persisted index unusable, rebuilding", "dir", m.dir, "error", err)
	chunks, serr := source(ctx)
	if serr != nil {
		return nil, fmt.Errorf("rebuilding index: %w", serr)
	}
	return m.Rebuild(ctx, chunks, embedder)
}

// Delete removes the persisted index and clears the current snapshot. It is
// safe to call when nothing exists.
func (m *Manager) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.current.Store(nil)
	path := filepath.Join(m.dir, FileName)
	for _, p := range []string{path, path + ".tmp"} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}
