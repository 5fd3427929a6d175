package frames

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// SessionDescriptor identifies one recorded trial and its shape. Descriptors
// are produced up front by EnumerateSessions so that core components never
// discover inputs implicitly.
type SessionDescriptor struct {
	UUID     uuid.UUID
	Name     string
	Frames   int
	Height   int
	Width    int
	HasMask  bool
	Metadata map[string]string
}

// SessionReader provides chunked access to one session's data. Frames are
// always read positionally; no stage reorders or drops real frames.
type SessionReader interface {
	Descriptor() SessionDescriptor

	// ReadFrames returns frames [start, end) as a stack.
	ReadFrames(start, end int) (*Stack, error)

	// ReadMaskRaw returns the raw validity-mask values for frames
	// [start, end), or an error if the session has no mask channel.
	ReadMaskRaw(start, end int) ([]float32, error)

	// Timestamps returns per-frame times in seconds for real frames, or nil
	// if the session recorded none.
	Timestamps() ([]float64, error)
}

// Source supplies sessions to the pipeline.
type Source interface {
	// EnumerateSessions lists all sessions in a stable order.
	EnumerateSessions(ctx context.Context) ([]SessionDescriptor, error)

	// Open returns a reader for the given session.
	Open(id uuid.UUID) (SessionReader, error)
}

// MemorySession is one fully in-memory session.
type MemorySession struct {
	Desc    SessionDescriptor
	Stack   *Stack
	RawMask []float32 // optional, parallel to Stack.Data
	Stamps  []float64 // optional, len = Stack.T
}

// MemorySource is an in-memory Source used by tests and small batch runs.
type MemorySource struct {
	sessions map[uuid.UUID]*MemorySession
}

// NewMemorySource builds a source from the given sessions.
func NewMemorySource(sessions ...*MemorySession) *MemorySource {
	src := &MemorySource{sessions: make(map[uuid.UUID]*MemorySession, len(sessions))}
	for _, s := range sessions {
		s.Desc.Frames = s.Stack.T
		s.Desc.Height = s.Stack.H
		s.Desc.Width = s.Stack.W
		s.Desc.HasMask = s.RawMask != nil
		src.sessions[s.Desc.UUID] = s
	}
	return src
}

func (m *MemorySource) EnumerateSessions(ctx context.Context) ([]SessionDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	descs := make([]SessionDescriptor, 0, len(m.sessions))
	for _, s := range m.sessions {
		descs = append(descs, s.Desc)
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].UUID.String() < descs[j].UUID.String()
	})
	return descs, nil
}

func (m *MemorySource) Open(id uuid.UUID) (SessionReader, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", id)
	}
	return &memoryReader{session: s}, nil
}

type memoryReader struct {
	session *MemorySession
}

func (r *memoryReader) Descriptor() SessionDescriptor {
	return r.session.Desc
}

func (r *memoryReader) ReadFrames(start, end int) (*Stack, error) {
	if start < 0 || end > r.session.Stack.T || start > end {
		return nil, fmt.Errorf("frame range [%d, %d) out of bounds for %d frames", start, end, r.session.Stack.T)
	}
	return r.session.Stack.Slice(start, end).Clone(), nil
}

func (r *memoryReader) ReadMaskRaw(start, end int) ([]float32, error) {
	if r.session.RawMask == nil {
		return nil, fmt.Errorf("session %s has no mask channel", r.session.Desc.UUID)
	}
	size := r.session.Stack.H * r.session.Stack.W
	if start < 0 || end > r.session.Stack.T || start > end {
		return nil, fmt.Errorf("mask range [%d, %d) out of bounds for %d frames", start, end, r.session.Stack.T)
	}
	out := make([]float32, (end-start)*size)
	copy(out, r.session.RawMask[start*size:end*size])
	return out, nil
}

func (r *memoryReader) Timestamps() ([]float64, error) {
	if r.session.Stamps == nil {
		return nil, nil
	}
	out := make([]float64, len(r.session.Stamps))
	copy(out, r.session.Stamps)
	return out, nil
}
