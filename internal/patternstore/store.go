package patternstore

// #region imports
import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keplerlabs/resonet/internal/intuition"
)

// #endregion imports

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS patterns (
	pattern_id    TEXT PRIMARY KEY,
	domain        TEXT NOT NULL,
	fingerprint   BLOB NOT NULL,
	weight        REAL NOT NULL DEFAULT 1.0,
	successes     INTEGER NOT NULL DEFAULT 0,
	attempts      INTEGER NOT NULL DEFAULT 0,
	links_json    TEXT NOT NULL DEFAULT '[]',
	tags_json     TEXT NOT NULL DEFAULT '[]',
	activations   INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_patterns_domain ON patterns(domain);
`

// #endregion schema

// #region store

// Store persists pattern transfer data in SQLite. It is the external
// collaborator on the core's persistence boundary: the intuition package
// only exposes PatternData and never touches storage itself.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for inspection tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion store

// #region save

// Save upserts one pattern.
func (s *Store) Save(d intuition.PatternData) error {
	links, err := json.Marshal(d.Links)
	if err != nil {
		return fmt.Errorf("marshal links: %w", err)
	}
	tags, err := json.Marshal(d.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	created := d.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO patterns (pattern_id, domain, fingerprint, weight, successes, attempts, links_json, tags_json, activations, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(pattern_id) DO UPDATE SET
		   domain = excluded.domain,
		   fingerprint = excluded.fingerprint,
		   weight = excluded.weight,
		   successes = excluded.successes,
		   attempts = excluded.attempts,
		   links_json = excluded.links_json,
		   tags_json = excluded.tags_json,
		   activations = excluded.activations`,
		d.ID, d.Domain, encodeVector(d.Fingerprint), d.Weight,
		d.Successes, d.Attempts, string(links), string(tags),
		d.Activations, created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save pattern %s: %w", d.ID, err)
	}
	return nil
}

// SaveAll upserts a snapshot in one transaction.
func (s *Store) SaveAll(patterns []intuition.PatternData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, d := range patterns {
		links, err := json.Marshal(d.Links)
		if err != nil {
			return fmt.Errorf("marshal links: %w", err)
		}
		tags, err := json.Marshal(d.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		created := d.CreatedAt
		if created.IsZero() {
			created = time.Now().UTC()
		}
		_, err = tx.Exec(
			`INSERT INTO patterns (pattern_id, domain, fingerprint, weight, successes, attempts, links_json, tags_json, activations, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(pattern_id) DO UPDATE SET
			   domain = excluded.domain,
			   fingerprint = excluded.fingerprint,
			   weight = excluded.weight,
			   successes = excluded.successes,
			   attempts = excluded.attempts,
			   links_json = excluded.links_json,
			   tags_json = excluded.tags_json,
			   activations = excluded.activations`,
			d.ID, d.Domain, encodeVector(d.Fingerprint), d.Weight,
			d.Successes, d.Attempts, string(links), string(tags),
			d.Activations, created.Format(time.RFC3339Nano),
		)
		if err != nil {
			return fmt.Errorf("save pattern %s: %w", d.ID, err)
		}
	}
	return tx.Commit()
}

// #endregion save

// #region load

// Load returns one pattern by id.
func (s *Store) Load(id string) (intuition.PatternData, error) {
	row := s.db.QueryRow(
		`SELECT pattern_id, domain, fingerprint, weight, successes, attempts, links_json, tags_json, activations, created_at
		 FROM patterns WHERE pattern_id = ?`, id)
	return scanPattern(row)
}

// List returns every stored pattern, newest first.
func (s *Store) List() ([]intuition.PatternData, error) {
	rows, err := s.db.Query(
		`SELECT pattern_id, domain, fingerprint, weight, successes, attempts, links_json, tags_json, activations, created_at
		 FROM patterns ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list patterns: %w", err)
	}
	defer rows.Close()

	var out []intuition.PatternData
	for rows.Next() {
		d, err := scanPattern(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// Delete removes one pattern.
func (s *Store) Delete(id string) error {
	_, err := s.db.Exec(`DELETE FROM patterns WHERE pattern_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete pattern %s: %w", id, err)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanPattern(row scannable) (intuition.PatternData, error) {
	var d intuition.PatternData
	var blob []byte
	var links, tags, created string
	if err := row.Scan(&d.ID, &d.Domain, &blob, &d.Weight,
		&d.Successes, &d.Attempts, &links, &tags, &d.Activations, &created); err != nil {
		return d, fmt.Errorf("scan pattern: %w", err)
	}
	d.Fingerprint = decodeVector(blob)
	if err := json.Unmarshal([]byte(links), &d.Links); err != nil {
		return d, fmt.Errorf("decode links: %w", err)
	}
	if err := json.Unmarshal([]byte(tags), &d.Tags); err != nil {
		return d, fmt.Errorf("decode tags: %w", err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return d, nil
}

// #endregion load

// #region vector-codec

// Fingerprints are stored as little-endian float64 blobs.
func encodeVector(v []float64) []byte {
	buf := make([]byte, 8*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(f))
	}
	return buf
}

func decodeVector(buf []byte) []float64 {
	v := make([]float64, len(buf)/8)
	for i := range v {
		v[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8:]))
	}
	return v
}

// #endregion vector-codec
