// Package warehouse persists the limits, stress parameters and facility
// balances configured per warehouse.
package warehouse

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/rampwatch/internal/domain"
)

// ErrNotFound is returned when a warehouse has no stored settings.
var ErrNotFound = errors.New("warehouse settings not found")

// Settings is everything configured for one warehouse.
type Settings struct {
	Warehouse string                 `json:"warehouse"`
	Config    domain.WarehouseConfig `json:"config"`
	Facility  domain.Facility        `json:"facility"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Repository reads and writes the warehouse_configs table.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
	now func() time.Time
}

// NewRepository creates a settings repository over the rampwatch database.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "warehouse").Logger(),
		now: time.Now,
	}
}

// Get returns the stored settings of a warehouse.
func (r *Repository) Get(warehouse string) (Settings, error) {
	row := r.db.QueryRow(`
		SELECT warehouse, config, debt_outstanding, cash_balance, updated_at
		FROM warehouse_configs WHERE warehouse = ?`, warehouse)

	s, err := scanSettings(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Settings{}, ErrNotFound
	}
	return s, err
}

// Resolve returns the stored settings, or defaults when none are stored.
// A warehouse is never left without limits.
func (r *Repository) Resolve(warehouse string) (Settings, error) {
	s, err := r.Get(warehouse)
	if errors.Is(err, ErrNotFound) {
		return Settings{Warehouse: warehouse, Config: domain.DefaultWarehouseConfig()}, nil
	}
	return s, err
}

// List returns every stored warehouse, by name.
func (r *Repository) List() ([]Settings, error) {
	rows, err := r.db.Query(`
		SELECT warehouse, config, debt_outstanding, cash_balance, updated_at
		FROM warehouse_configs ORDER BY warehouse`)
	if err != nil {
		return nil, fmt.Errorf("failed to query warehouse settings: %w", err)
	}
	defer rows.Close()

	out := make([]Settings, 0)
	for rows.Next() {
		s, err := scanSettings(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating warehouse settings: %w", err)
	}
	return out, nil
}

// Upsert validates and stores settings, replacing what was there.
func (r *Repository) Upsert(s Settings) error {
	if s.Warehouse == "" {
		return errors.New("warehouse name is required")
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("invalid config for %s: %w", s.Warehouse, err)
	}

	blob, err := json.Marshal(s.Config)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	var debt sql.NullFloat64
	if s.Facility.DebtOutstanding != nil {
		debt = sql.NullFloat64{Float64: *s.Facility.DebtOutstanding, Valid: true}
	}

	_, err = r.db.Exec(`
		INSERT INTO warehouse_configs (warehouse, config, debt_outstanding, cash_balance, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(warehouse) DO UPDATE SET
			config = excluded.config,
			debt_outstanding = excluded.debt_outstanding,
			cash_balance = excluded.cash_balance,
			updated_at = excluded.updated_at`,
		s.Warehouse, string(blob), debt, s.Facility.CashBalance, r.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert settings for %s: %w", s.Warehouse, err)
	}

	r.log.Info().Str("warehouse", s.Warehouse).Msg("Stored warehouse settings")
	return nil
}

// Delete removes a warehouse's settings.
func (r *Repository) Delete(warehouse string) error {
	res, err := r.db.Exec("DELETE FROM warehouse_configs WHERE warehouse = ?", warehouse)
	if err != nil {
		return fmt.Errorf("failed to delete settings: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSettings(row scanner) (Settings, error) {
	var s Settings
	var blob string
	var debt sql.NullFloat64
	var updatedAt int64

	if err := row.Scan(&s.Warehouse, &blob, &debt, &s.Facility.CashBalance, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s, err
		}
		return s, fmt.Errorf("failed to scan warehouse settings: %w", err)
	}

	s.Config = domain.DefaultWarehouseConfig()
	if err := json.Unmarshal([]byte(blob), &s.Config); err != nil {
		return s, fmt.Errorf("failed to decode config of %s: %w", s.Warehouse, err)
	}
	if debt.Valid {
		s.Facility.DebtOutstanding = domain.Float(debt.Float64)
	}
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return s, nil
}
