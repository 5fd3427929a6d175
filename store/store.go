// Package store persists named pipeline artifacts: the trained PCA model,
// per-session scores with their padding marker, and per-session
// changepoints, each keyed by session UUID. The store has a single writer:
// the pipeline coordinator appends one session's results at a time.
package store

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"

	"github.com/behaviorkit/depthpca/pca"
)

// ErrNotFound is returned when a requested artifact has not been saved.
var ErrNotFound = errors.New("artifact not found")

// ScoreSet is one session's padded scores plus the marker distinguishing
// real rows from inserted ones and the (padded) timestamp series.
type ScoreSet struct {
	Scores     *mat.Dense
	Marker     []float64
	Timestamps []float64
}

// ChangepointSet is one session's ordered boundary times (seconds) and the
// corresponding peak magnitudes.
type ChangepointSet struct {
	Times []float64
	Peaks []float64
}

// ResultStore accepts and returns named artifacts.
type ResultStore interface {
	SaveModel(m *pca.Model) error
	Model() (*pca.Model, error)

	SaveScores(session uuid.UUID, s *ScoreSet) error
	Scores(session uuid.UUID) (*ScoreSet, error)

	SaveChangepoints(session uuid.UUID, c *ChangepointSet) error
	Changepoints(session uuid.UUID) (*ChangepointSet, error)

	SaveSessionMetadata(session uuid.UUID, metadata map[string]string) error
	SessionMetadata(session uuid.UUID) (map[string]string, error)

	Close() error
}

// MemoryStore is an in-memory ResultStore for tests and single-run use.
type MemoryStore struct {
	mu           sync.RWMutex
	model        *pca.Model
	scores       map[uuid.UUID]*ScoreSet
	changepoints map[uuid.UUID]*ChangepointSet
	metadata     map[uuid.UUID]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		scores:       make(map[uuid.UUID]*ScoreSet),
		changepoints: make(map[uuid.UUID]*ChangepointSet),
		metadata:     make(map[uuid.UUID]map[string]string),
	}
}

func (m *MemoryStore) SaveModel(model *pca.Model) error {
	if err := model.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.model = model
	return nil
}

func (m *MemoryStore) Model() (*pca.Model, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.model == nil {
		return nil, ErrNotFound
	}
	return m.model, nil
}

func (m *MemoryStore) SaveScores(session uuid.UUID, s *ScoreSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[session] = s
	return nil
}

func (m *MemoryStore) Scores(session uuid.UUID) (*ScoreSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.scores[session]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) SaveChangepoints(session uuid.UUID, c *ChangepointSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.changepoints[session] = c
	return nil
}

func (m *MemoryStore) Changepoints(session uuid.UUID) (*ChangepointSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.changepoints[session]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *MemoryStore) SaveSessionMetadata(session uuid.UUID, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metadata[session] = metadata
	return nil
}

func (m *MemoryStore) SessionMetadata(session uuid.UUID) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	md, ok := m.metadata[session]
	if !ok {
		return nil, ErrNotFound
	}
	return md, nil
}

func (m *MemoryStore) Close() error {
	return nil
}
