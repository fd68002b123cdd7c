// Package journal provides SQLite-based persistence for kernel runs: every
// step batch, its output stream, and the resulting state snapshot. The
// journal is the replay record — verifying a run means re-feeding the
// journaled batches into a fresh kernel and comparing hash streams.
//
// Batch event payloads and state snapshots are stored as deterministic CBOR
// so that byte-level comparison of journal rows is meaningful across runs.
package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/macterra/Axio-sub003/pkg/kernel"
)

// Store wraps the journal database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) a journal database at path.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	// WAL lets a long-running harness append while a verifier reads.
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema if it doesn't exist.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		batch_id       TEXT PRIMARY KEY,
		seq            INTEGER UNIQUE NOT NULL,
		recorded_at    INTEGER DEFAULT (strftime('%s', 'now')),
		events         BLOB NOT NULL,
		final_state_id TEXT NOT NULL,
		snapshot       BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_batches_seq ON batches(seq);

	CREATE TABLE IF NOT EXISTS outputs (
		batch_id    TEXT NOT NULL REFERENCES batches(batch_id),
		event_index INTEGER NOT NULL,
		output_type TEXT NOT NULL,
		state_hash  TEXT NOT NULL,
		details     TEXT NOT NULL DEFAULT '{}',
		PRIMARY KEY (batch_id, event_index)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RecordedBatch is one journaled step batch with its decoded events.
type RecordedBatch struct {
	BatchID      string
	Seq          int
	RecordedAt   time.Time
	Batch        kernel.StepBatch
	FinalStateID string
}

// RecordedOutput is one journaled kernel output.
type RecordedOutput struct {
	BatchID    string
	EventIndex int
	OutputType kernel.OutputType
	StateHash  string
	Details    map[string]any
}

// AppendBatch journals one processed batch: the event payload, every output,
// and the final snapshot, in a single transaction.
func (s *Store) AppendBatch(batchID string, seq int, batch kernel.StepBatch, res *kernel.BatchResult) error {
	events, err := encodeBatch(batch)
	if err != nil {
		return fmt.Errorf("encode batch events: %w", err)
	}
	snapshot, err := encodeSnapshot(res.State)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO batches (batch_id, seq, events, final_state_id, snapshot) VALUES (?, ?, ?, ?, ?)`,
		batchID, seq, events, res.State.StateID, snapshot,
	); err != nil {
		return fmt.Errorf("insert batch: %w", err)
	}

	for _, out := range res.Outputs {
		details, err := json.Marshal(out.Details)
		if err != nil {
			return fmt.Errorf("marshal output details: %w", err)
		}
		if _, err := tx.Exec(
			`INSERT INTO outputs (batch_id, event_index, output_type, state_hash, details) VALUES (?, ?, ?, ?, ?)`,
			batchID, out.EventIndex, string(out.Type), out.StateHash, string(details),
		); err != nil {
			return fmt.Errorf("insert output: %w", err)
		}
	}
	return tx.Commit()
}

// Batches returns every journaled batch in sequence order with decoded
// events, ready to re-feed into a fresh kernel.
func (s *Store) Batches() ([]RecordedBatch, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, seq, recorded_at, events, final_state_id FROM batches ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("query batches: %w", err)
	}
	defer rows.Close()

	var batches []RecordedBatch
	for rows.Next() {
		var (
			rb       RecordedBatch
			recorded int64
			events   []byte
		)
		if err := rows.Scan(&rb.BatchID, &rb.Seq, &recorded, &events, &rb.FinalStateID); err != nil {
			return nil, fmt.Errorf("scan batch: %w", err)
		}
		rb.RecordedAt = time.Unix(recorded, 0)
		rb.Batch, err = decodeBatch(events)
		if err != nil {
			return nil, fmt.Errorf("decode batch %s: %w", rb.BatchID, err)
		}
		batches = append(batches, rb)
	}
	return batches, rows.Err()
}

// Outputs returns the journaled outputs for one batch in event-index order.
func (s *Store) Outputs(batchID string) ([]RecordedOutput, error) {
	rows, err := s.db.Query(
		`SELECT batch_id, event_index, output_type, state_hash, details
		 FROM outputs WHERE batch_id = ? ORDER BY event_index`, batchID)
	if err != nil {
		return nil, fmt.Errorf("query outputs: %w", err)
	}
	defer rows.Close()

	var outs []RecordedOutput
	for rows.Next() {
		var (
			ro         RecordedOutput
			outputType string
			details    string
		)
		if err := rows.Scan(&ro.BatchID, &ro.EventIndex, &outputType, &ro.StateHash, &details); err != nil {
			return nil, fmt.Errorf("scan output: %w", err)
		}
		ro.OutputType = kernel.OutputType(outputType)
		if err := json.Unmarshal([]byte(details), &ro.Details); err != nil {
			return nil, fmt.Errorf("unmarshal output details: %w", err)
		}
		outs = append(outs, ro)
	}
	return outs, rows.Err()
}

// HashStream returns every journaled state hash in processing order: output
// hashes within each batch, ordered by batch sequence.
func (s *Store) HashStream() ([]string, error) {
	rows, err := s.db.Query(
		`SELECT o.state_hash
		 FROM outputs o JOIN batches b ON b.batch_id = o.batch_id
		 ORDER BY b.seq, o.event_index`)
	if err != nil {
		return nil, fmt.Errorf("query hash stream: %w", err)
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash: %w", err)
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}

// FinalSnapshot returns the last journaled state snapshot, or nil if the
// journal is empty.
func (s *Store) FinalSnapshot() (*kernel.AuthorityState, error) {
	var snapshot []byte
	err := s.db.QueryRow(
		`SELECT snapshot FROM batches ORDER BY seq DESC LIMIT 1`).Scan(&snapshot)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	return decodeSnapshot(snapshot)
}
