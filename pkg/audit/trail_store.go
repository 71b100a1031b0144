package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/concord-labs/concord/pkg/contracts"

	_ "modernc.org/sqlite"
)

// ErrTrailNotFound is returned when no trail exists for a fingerprint.
var ErrTrailNotFound = errors.New("audit: trail not found")

// SQLiteTrailStore persists completed verification audit trails. The
// table is insert-only; there is no update or delete path.
type SQLiteTrailStore struct {
	db *sql.DB
}

// NewSQLiteTrailStore migrates the schema and returns the store.
func NewSQLiteTrailStore(db *sql.DB) (*SQLiteTrailStore, error) {
	s := &SQLiteTrailStore{db: db}
	if err := s.migrate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTrailStore) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS verification_trails (
		fingerprint TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		actor TEXT NOT NULL,
		from_state TEXT NOT NULL,
		to_state TEXT NOT NULL,
		rationale TEXT NOT NULL,
		confidence_delta REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (fingerprint, seq)
	);`
	_, err := s.db.ExecContext(context.Background(), query)
	return err
}

// AppendTrail stores the full trail of one completed verification.
// A fingerprint can be verified more than once (a retry after an
// Escalated run, say); each run's trail is appended after the stored
// rows rather than colliding with them. Implements
// verification.TrailSink.
func (s *SQLiteTrailStore) AppendTrail(ctx context.Context, fingerprint string, trail []contracts.Transition) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("audit: begin trail tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var base int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), -1) FROM verification_trails WHERE fingerprint = ?`,
		fingerprint).Scan(&base); err != nil {
		return fmt.Errorf("audit: read trail offset: %w", err)
	}

	const insert = `
	INSERT INTO verification_trails
		(fingerprint, seq, timestamp, actor, from_state, to_state, rationale, confidence_delta)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	for i, t := range trail {
		if _, err := tx.ExecContext(ctx, insert,
			fingerprint, base+1+i, t.Timestamp, t.Actor, string(t.From), string(t.To), t.Rationale, t.ConfidenceDelta); err != nil {
			return fmt.Errorf("audit: insert transition %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// GetTrail reads back the trail for one fingerprint in append order.
func (s *SQLiteTrailStore) GetTrail(ctx context.Context, fingerprint string) ([]contracts.Transition, error) {
	const query = `
	SELECT timestamp, actor, from_state, to_state, rationale, confidence_delta
	FROM verification_trails
	WHERE fingerprint = ?
	ORDER BY seq ASC`
	rows, err := s.db.QueryContext(ctx, query, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("audit: query trail: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var trail []contracts.Transition
	for rows.Next() {
		var t contracts.Transition
		var from, to string
		if err := rows.Scan(&t.Timestamp, &t.Actor, &from, &to, &t.Rationale, &t.ConfidenceDelta); err != nil {
			return nil, fmt.Errorf("audit: scan transition: %w", err)
		}
		t.From = contracts.VerificationState(from)
		t.To = contracts.VerificationState(to)
		trail = append(trail, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(trail) == 0 {
		return nil, ErrTrailNotFound
	}
	return trail, nil
}

// Count returns the number of persisted trails.
func (s *SQLiteTrailStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT fingerprint) FROM verification_trails`).Scan(&n)
	return n, err
}
