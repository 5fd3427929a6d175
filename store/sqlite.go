package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/mat"
	_ "modernc.org/sqlite"

	"github.com/behaviorkit/depthpca/pca"
)

// SQLiteStore is a ResultStore backed by a sqlite database file. Float
// arrays are stored as little-endian float64 blobs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS pca_model (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			rank INTEGER NOT NULL,
			features INTEGER NOT NULL,
			components BLOB NOT NULL,
			singular_values BLOB NOT NULL,
			explained_variance BLOB NOT NULL,
			explained_variance_ratio BLOB NOT NULL,
			mean BLOB NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS scores (
			session TEXT PRIMARY KEY,
			frames INTEGER NOT NULL,
			rank INTEGER NOT NULL,
			data BLOB NOT NULL,
			marker BLOB NOT NULL,
			timestamps BLOB NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS changepoints (
			session TEXT PRIMARY KEY,
			times BLOB NOT NULL,
			peaks BLOB NOT NULL,
			created TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE IF NOT EXISTS session_metadata (
			session TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (session, key)
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

func floatsToBlob(v []float64) []byte {
	blob := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(f))
	}
	return blob
}

func blobToFloats(blob []byte) ([]float64, error) {
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("float blob length %d is not a multiple of 8", len(blob))
	}
	v := make([]float64, len(blob)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[i*8:]))
	}
	return v, nil
}

func denseToBlob(m *mat.Dense) []byte {
	r, c := m.Dims()
	data := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	return floatsToBlob(data)
}

func blobToDense(blob []byte, r, c int) (*mat.Dense, error) {
	data, err := blobToFloats(blob)
	if err != nil {
		return nil, err
	}
	if len(data) != r*c {
		return nil, fmt.Errorf("matrix blob holds %d values, expected %d", len(data), r*c)
	}
	return mat.NewDense(r, c, data), nil
}

func (s *SQLiteStore) SaveModel(m *pca.Model) error {
	if err := m.Validate(); err != nil {
		return err
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pca_model
			(id, rank, features, components, singular_values,
			 explained_variance, explained_variance_ratio, mean)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?)`,
		m.Rank(), m.Features(), denseToBlob(m.Components),
		floatsToBlob(m.SingularValues), floatsToBlob(m.ExplainedVariance),
		floatsToBlob(m.ExplainedVarianceRatio), floatsToBlob(m.Mean))
	return err
}

func (s *SQLiteStore) Model() (*pca.Model, error) {
	row := s.db.QueryRow(`
		SELECT rank, features, components, singular_values,
		       explained_variance, explained_variance_ratio, mean
		FROM pca_model WHERE id = 1`)

	var (
		rank, features                     int
		components, sv, ev, evr, meanBlobs []byte
	)
	err := row.Scan(&rank, &features, &components, &sv, &ev, &evr, &meanBlobs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	comp, err := blobToDense(components, rank, features)
	if err != nil {
		return nil, err
	}
	singular, err := blobToFloats(sv)
	if err != nil {
		return nil, err
	}
	explained, err := blobToFloats(ev)
	if err != nil {
		return nil, err
	}
	ratio, err := blobToFloats(evr)
	if err != nil {
		return nil, err
	}
	mean, err := blobToFloats(meanBlobs)
	if err != nil {
		return nil, err
	}

	model := &pca.Model{
		Components:             comp,
		SingularValues:         singular,
		ExplainedVariance:      explained,
		ExplainedVarianceRatio: ratio,
		Mean:                   mean,
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

func (s *SQLiteStore) SaveScores(session uuid.UUID, set *ScoreSet) error {
	frames, rank := set.Scores.Dims()
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO scores (session, frames, rank, data, marker, timestamps)
		VALUES (?, ?, ?, ?, ?, ?)`,
		session.String(), frames, rank, denseToBlob(set.Scores),
		floatsToBlob(set.Marker), floatsToBlob(set.Timestamps))
	return err
}

func (s *SQLiteStore) Scores(session uuid.UUID) (*ScoreSet, error) {
	row := s.db.QueryRow(
		`SELECT frames, rank, data, marker, timestamps FROM scores WHERE session = ?`,
		session.String())

	var (
		frames, rank         int
		data, marker, stamps []byte
	)
	err := row.Scan(&frames, &rank, &data, &marker, &stamps)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	scores, err := blobToDense(data, frames, rank)
	if err != nil {
		return nil, err
	}
	markerVals, err := blobToFloats(marker)
	if err != nil {
		return nil, err
	}
	stampVals, err := blobToFloats(stamps)
	if err != nil {
		return nil, err
	}

	return &ScoreSet{Scores: scores, Marker: markerVals, Timestamps: stampVals}, nil
}

func (s *SQLiteStore) SaveChangepoints(session uuid.UUID, c *ChangepointSet) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO changepoints (session, times, peaks)
		VALUES (?, ?, ?)`,
		session.String(), floatsToBlob(c.Times), floatsToBlob(c.Peaks))
	return err
}

func (s *SQLiteStore) Changepoints(session uuid.UUID) (*ChangepointSet, error) {
	row := s.db.QueryRow(
		`SELECT times, peaks FROM changepoints WHERE session = ?`, session.String())

	var times, peaks []byte
	err := row.Scan(&times, &peaks)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	timeVals, err := blobToFloats(times)
	if err != nil {
		return nil, err
	}
	peakVals, err := blobToFloats(peaks)
	if err != nil {
		return nil, err
	}
	return &ChangepointSet{Times: timeVals, Peaks: peakVals}, nil
}

func (s *SQLiteStore) SaveSessionMetadata(session uuid.UUID, metadata map[string]string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	for k, v := range metadata {
		if _, err := tx.Exec(`
			INSERT OR REPLACE INTO session_metadata (session, key, value)
			VALUES (?, ?, ?)`, session.String(), k, v); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) SessionMetadata(session uuid.UUID) (map[string]string, error) {
	rows, err := s.db.Query(
		`SELECT key, value FROM session_metadata WHERE session = ?`, session.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	metadata := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		metadata[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(metadata) == 0 {
		return nil, ErrNotFound
	}
	return metadata, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
