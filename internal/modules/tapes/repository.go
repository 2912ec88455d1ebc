package tapes

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/aristath/rampwatch/internal/database"
	"github.com/aristath/rampwatch/internal/domain"
)

// DateLayout is the as-of date format used in storage and on the wire.
const DateLayout = "2006-01-02"

var (
	// ErrNotFound is returned when no tape matches the lookup.
	ErrNotFound = errors.New("tape not found")
	// ErrRejected is wrapped by RejectedError.
	ErrRejected = errors.New("tape rejected")
)

// RejectedError carries the issues that stopped a tape from being stored.
type RejectedError struct {
	Issues []Issue
}

func (e *RejectedError) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		if is.Severity == IssueHard {
			msgs = append(msgs, is.Message)
		}
	}
	return fmt.Sprintf("%s: %s", ErrRejected, strings.Join(msgs, "; "))
}

func (e *RejectedError) Unwrap() error { return ErrRejected }

// SaveResult is what Save reports back for an accepted tape.
type SaveResult struct {
	TapeID   string  `json:"tape_id"`
	Replaced bool    `json:"replaced"`
	Issues   []Issue `json:"issues"`
}

// Summary describes one warehouse's stored tapes.
type Summary struct {
	Warehouse  string    `json:"warehouse"`
	LatestAsOf time.Time `json:"latest_as_of"`
	TapeCount  int       `json:"tape_count"`
	LatestPar  float64   `json:"latest_par"`
}

// Repository persists tapes in the tapes table.
// Assets are stored as a msgpack blob; one tape per warehouse per as-of date.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a tape repository over the rampwatch database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "tapes").Logger(),
		now: time.Now,
	}
}

// Save validates and stores a snapshot, replacing any tape already stored for
// the same warehouse and as-of date. Tapes with HARD issues are rejected with
// a *RejectedError; SOFT issues are returned alongside the new id.
func (r *Repository) Save(s domain.Snapshot, source string) (SaveResult, error) {
	if strings.TrimSpace(s.Warehouse) == "" {
		return SaveResult{}, fmt.Errorf("%w: warehouse is required", ErrRejected)
	}
	if s.AsOf.IsZero() {
		return SaveResult{}, fmt.Errorf("%w: as_of is required", ErrRejected)
	}

	issues := Validate(s.Assets)
	if HasHard(issues) {
		r.log.Warn().
			Str("warehouse", s.Warehouse).
			Int("issues", len(issues)).
			Msg("Rejected tape")
		return SaveResult{}, &RejectedError{Issues: issues}
	}

	blob, err := msgpack.Marshal(s.Assets)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to encode assets: %w", err)
	}

	result := SaveResult{TapeID: uuid.NewString(), Issues: issues}
	asOf := s.AsOf.UTC().Format(DateLayout)

	err = database.WithTransaction(r.db, func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM tapes WHERE warehouse = ? AND as_of = ?", s.Warehouse, asOf)
		if err != nil {
			return fmt.Errorf("failed to clear previous tape: %w", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			result.Replaced = true
		}

		_, err = tx.Exec(`
			INSERT INTO tapes (tape_id, warehouse, as_of, asset_count, total_par, assets, source, uploaded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			result.TapeID, s.Warehouse, asOf, len(s.Assets), s.TotalPar(), blob, source, r.now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert tape: %w", err)
		}
		return nil
	})
	if err != nil {
		return SaveResult{}, err
	}

	r.log.Info().
		Str("warehouse", s.Warehouse).
		Str("as_of", asOf).
		Str("tape_id", result.TapeID).
		Int("assets", len(s.Assets)).
		Bool("replaced", result.Replaced).
		Msg("Stored tape")
	return result, nil
}

const selectTape = "SELECT tape_id, warehouse, as_of, assets FROM tapes"

// Get returns the tape with the given id.
func (r *Repository) Get(tapeID string) (domain.Snapshot, error) {
	return r.scanOne(r.db.QueryRow(selectTape+" WHERE tape_id = ?", tapeID))
}

// Latest returns the most recent tape of a warehouse.
func (r *Repository) Latest(warehouse string) (domain.Snapshot, error) {
	return r.scanOne(r.db.QueryRow(
		selectTape+" WHERE warehouse = ? ORDER BY as_of DESC LIMIT 1", warehouse))
}

// History returns every tape of a warehouse, oldest first.
func (r *Repository) History(warehouse string) ([]domain.Snapshot, error) {
	rows, err := r.db.Query(selectTape+" WHERE warehouse = ? ORDER BY as_of ASC", warehouse)
	if err != nil {
		return nil, fmt.Errorf("failed to query tape history: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tapes: %w", err)
	}
	return out, nil
}

// Warehouses summarises every warehouse with at least one tape, by name.
func (r *Repository) Warehouses() ([]Summary, error) {
	rows, err := r.db.Query(`
		SELECT t.warehouse, t.as_of, t.total_par, c.n
		FROM tapes t
		JOIN (SELECT warehouse, MAX(as_of) AS latest, COUNT(*) AS n FROM tapes GROUP BY warehouse) c
		  ON c.warehouse = t.warehouse AND c.latest = t.as_of
		ORDER BY t.warehouse`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouses: %w", err)
	}
	defer rows.Close()

	out := make([]Summary, 0)
	for rows.Next() {
		var s Summary
		var asOf string
		if err := rows.Scan(&s.Warehouse, &asOf, &s.LatestPar, &s.TapeCount); err != nil {
			return nil, fmt.Errorf("failed to scan warehouse summary: %w", err)
		}
		if s.LatestAsOf, err = time.Parse(DateLayout, asOf); err != nil {
			return nil, fmt.Errorf("bad as_of %q for %s: %w", asOf, s.Warehouse, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouses: %w", err)
	}
	return out, nil
}

// Delete removes a tape.
func (r *Repository) Delete(tapeID string) error {
	res, err := r.db.Exec("DELETE FROM tapes WHERE tape_id = ?", tapeID)
	if err != nil {
		return fmt.Errorf("failed to delete tape: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) scanOne(row *sql.Row) (domain.Snapshot, error) {
	s, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Snapshot{}, ErrNotFound
	}
	return s, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (domain.Snapshot, error) {
	var s domain.Snapshot
	var asOf string
	var blob []byte
	if err := row.Scan(&s.TapeID, &s.Warehouse, &asOf, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan tape: %w", err)
	}

	var err error
	if s.AsOf, err = time.Parse(DateLayout, asOf); err != nil {
		return s, fmt.Errorf("bad as_of %q on tape %s: %w", asOf, s.TapeID, err)
	}
	if err := msgpack.Unmarshal(blob, &s.Assets); err != nil {
		return s, fmt.Errorf("failed to decode assets of tape %s: %w", s.TapeID, err)
	}
	// msgpack decodes timestamps in the local zone.
	for i := range s.Assets {
		if m := s.Assets[i].MaturityDate; m != nil {
			utc := m.UTC()
			s.Assets[i].MaturityDate = &utc
		}
	}
	return s, nil
}
