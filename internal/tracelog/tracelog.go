package tracelog

// #region imports
import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/keplerlabs/resonet/internal/stack"
)

// #endregion imports

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id        TEXT PRIMARY KEY,
	input_layer   TEXT NOT NULL,
	combined      REAL NOT NULL,
	amplification REAL NOT NULL,
	iterations    INTEGER NOT NULL,
	converged     INTEGER NOT NULL,
	elapsed_ms    REAL NOT NULL,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_signals (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        TEXT NOT NULL,
	iteration     INTEGER NOT NULL,
	bridge        TEXT,
	direction     TEXT NOT NULL,
	from_layer    TEXT NOT NULL,
	to_layer      TEXT NOT NULL,
	confidence    REAL NOT NULL,
	error         TEXT,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);
CREATE INDEX IF NOT EXISTS idx_run_signals_run ON run_signals(run_id);
`

// #endregion schema

// #region log

// Log writes orchestration runs and their signal traces to SQLite for
// offline inspection. Advisory observability only; the orchestrator never
// depends on it.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the trace database at dbPath.
func Open(dbPath string) (*Log, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open trace db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// Close closes the underlying database connection.
func (l *Log) Close() error {
	return l.db.Close()
}

// #endregion log

// #region record

// Record persists one run and its full trace in a transaction.
func (l *Log) Record(res *stack.Result) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	converged := 0
	if res.Converged {
		converged = 1
	}
	_, err = tx.Exec(
		`INSERT INTO runs (run_id, input_layer, combined, amplification, iterations, converged, elapsed_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		res.RunID, res.InputLayer.Name(), res.Combined, res.TotalAmplification,
		res.Iterations, converged, float64(res.Elapsed)/float64(time.Millisecond),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", res.RunID, err)
	}

	for _, tr := range res.Trace {
		_, err = tx.Exec(
			`INSERT INTO run_signals (run_id, iteration, bridge, direction, from_layer, to_layer, confidence, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			res.RunID, tr.Iteration, nullIfEmpty(tr.Bridge), tr.Direction,
			tr.From.Name(), tr.To.Name(), tr.Confidence, nullIfEmpty(tr.Err),
		)
		if err != nil {
			return fmt.Errorf("record signal: %w", err)
		}
	}
	return tx.Commit()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// #endregion record

// #region query

// RunSummary is one persisted run row.
type RunSummary struct {
	RunID      string
	InputLayer string
	Combined   float64
	Iterations int
	Converged  bool
	Signals    int
	CreatedAt  time.Time
}

// Recent returns the newest runs with their signal counts.
func (l *Log) Recent(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.Query(
		`SELECT r.run_id, r.input_layer, r.combined, r.iterations, r.converged, r.created_at,
		        (SELECT COUNT(*) FROM run_signals s WHERE s.run_id = r.run_id)
		 FROM runs r ORDER BY r.created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var converged int
		var created string
		if err := rows.Scan(&r.RunID, &r.InputLayer, &r.Combined,
			&r.Iterations, &converged, &created, &r.Signals); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.Converged = converged == 1
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// #endregion query
