package frames

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ManifestName is the index file a FileSource expects in its directory.
const ManifestName = "manifest.yaml"

// ManifestSession describes one session in a source directory. Depth and
// mask files hold raw little-endian float32 values, frames*height*width
// each; the timestamp file holds little-endian float64 seconds, one per
// frame.
type ManifestSession struct {
	UUID       string            `yaml:"uuid"`
	Name       string            `yaml:"name"`
	Frames     int               `yaml:"frames"`
	Height     int               `yaml:"height"`
	Width      int               `yaml:"width"`
	Data       string            `yaml:"data"`
	Mask       string            `yaml:"mask,omitempty"`
	Timestamps string            `yaml:"timestamps,omitempty"`
	Metadata   map[string]string `yaml:"metadata,omitempty"`
}

// Manifest is the on-disk session index.
type Manifest struct {
	Sessions []ManifestSession `yaml:"sessions"`
}

// FileSource serves sessions from a directory of raw depth recordings
// indexed by a manifest.
type FileSource struct {
	dir      string
	sessions map[uuid.UUID]ManifestSession
}

// OpenFileSource reads the manifest under dir and validates every entry's
// shape against its files before serving anything.
func OpenFileSource(dir string) (*FileSource, error) {
	raw, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}

	src := &FileSource{dir: dir, sessions: make(map[uuid.UUID]ManifestSession, len(manifest.Sessions))}
	for _, s := range manifest.Sessions {
		id, err := uuid.Parse(s.UUID)
		if err != nil {
			return nil, fmt.Errorf("session %q: invalid uuid: %w", s.Name, err)
		}
		if s.Frames <= 0 || s.Height <= 0 || s.Width <= 0 {
			return nil, fmt.Errorf("session %s: invalid shape (%d, %d, %d)", id, s.Frames, s.Height, s.Width)
		}
		if err := src.checkSize(s.Data, int64(s.Frames*s.Height*s.Width)*4); err != nil {
			return nil, fmt.Errorf("session %s: %w", id, err)
		}
		if s.Mask != "" {
			if err := src.checkSize(s.Mask, int64(s.Frames*s.Height*s.Width)*4); err != nil {
				return nil, fmt.Errorf("session %s: %w", id, err)
			}
		}
		if s.Timestamps != "" {
			if err := src.checkSize(s.Timestamps, int64(s.Frames)*8); err != nil {
				return nil, fmt.Errorf("session %s: %w", id, err)
			}
		}
		src.sessions[id] = s
	}
	return src, nil
}

func (f *FileSource) checkSize(name string, want int64) error {
	info, err := os.Stat(filepath.Join(f.dir, name))
	if err != nil {
		return err
	}
	if info.Size() != want {
		return fmt.Errorf("%s is %d bytes, expected %d", name, info.Size(), want)
	}
	return nil
}

func (f *FileSource) EnumerateSessions(ctx context.Context) ([]SessionDescriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	descs := make([]SessionDescriptor, 0, len(f.sessions))
	for id, s := range f.sessions {
		descs = append(descs, SessionDescriptor{
			UUID:     id,
			Name:     s.Name,
			Frames:   s.Frames,
			Height:   s.Height,
			Width:    s.Width,
			HasMask:  s.Mask != "",
			Metadata: s.Metadata,
		})
	}
	sort.Slice(descs, func(i, j int) bool {
		return descs[i].UUID.String() < descs[j].UUID.String()
	})
	return descs, nil
}

func (f *FileSource) Open(id uuid.UUID) (SessionReader, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, fmt.Errorf("unknown session %s", id)
	}
	return &fileReader{dir: f.dir, id: id, session: s}, nil
}

type fileReader struct {
	dir     string
	id      uuid.UUID
	session ManifestSession
}

func (r *fileReader) Descriptor() SessionDescriptor {
	return SessionDescriptor{
		UUID:     r.id,
		Name:     r.session.Name,
		Frames:   r.session.Frames,
		Height:   r.session.Height,
		Width:    r.session.Width,
		HasMask:  r.session.Mask != "",
		Metadata: r.session.Metadata,
	}
}

// readFloat32Range reads frames [start, end) worth of float32 values from a
// raw file.
func (r *fileReader) readFloat32Range(name string, start, end int) ([]float32, error) {
	if start < 0 || end > r.session.Frames || start > end {
		return nil, fmt.Errorf("frame range [%d, %d) out of bounds for %d frames", start, end, r.session.Frames)
	}

	size := r.session.Height * r.session.Width
	file, err := os.Open(filepath.Join(r.dir, name))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	buf := make([]byte, (end-start)*size*4)
	if _, err := file.ReadAt(buf, int64(start*size)*4); err != nil {
		return nil, err
	}

	out := make([]float32, (end-start)*size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return out, nil
}

func (r *fileReader) ReadFrames(start, end int) (*Stack, error) {
	data, err := r.readFloat32Range(r.session.Data, start, end)
	if err != nil {
		return nil, err
	}
	return NewStackFrom(data, end-start, r.session.Height, r.session.Width)
}

func (r *fileReader) ReadMaskRaw(start, end int) ([]float32, error) {
	if r.session.Mask == "" {
		return nil, fmt.Errorf("session %s has no mask channel", r.id)
	}
	return r.readFloat32Range(r.session.Mask, start, end)
}

func (r *fileReader) Timestamps() ([]float64, error) {
	if r.session.Timestamps == "" {
		return nil, nil
	}

	buf, err := os.ReadFile(filepath.Join(r.dir, r.session.Timestamps))
	if err != nil {
		return nil, err
	}
	if len(buf) != r.session.Frames*8 {
		return nil, fmt.Errorf("timestamp file is %d bytes, expected %d", len(buf), r.session.Frames*8)
	}

	out := make([]float64, r.session.Frames)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return out, nil
}
