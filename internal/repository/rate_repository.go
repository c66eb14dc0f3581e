package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tutoring-api/internal/model"
	"tutoring-api/internal/repository/base"
)

// RateRepository reads and writes the single rate_config row. The row is
// seeded by the initial migration, so reads never come back empty.
type RateRepository struct {
	db base.Querier
}

func NewRateRepository(pool *pgxpool.Pool) *RateRepository {
	return &RateRepository{db: pool}
}

// WithTx returns a copy of the repository bound to an open transaction.
func (r *RateRepository) WithTx(tx pgx.Tx) *RateRepository {
	return &RateRepository{db: tx}
}

// Get returns the current rate config.
func (r *RateRepository) Get(ctx context.Context) (*model.RateConfig, error) {
	query := `SELECT hourly_rate, updated_at FROM rate_config WHERE id = 1`

	var rc model.RateConfig
	if err := r.db.QueryRow(ctx, query).Scan(&rc.HourlyRate, &rc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get rate config: %w", err)
	}

	return &rc, nil
}

// GetForShare reads the rate with a share lock. Inside a transaction this
// blocks a concurrent rate update until the transaction finishes, so a
// booking prices against exactly one rate value.
func (r *RateRepository) GetForShare(ctx context.Context) (*model.RateConfig, error) {
	query := `SELECT hourly_rate, updated_at FROM rate_config WHERE id = 1 FOR SHARE`

	var rc model.RateConfig
	if err := r.db.QueryRow(ctx, query).Scan(&rc.HourlyRate, &rc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("get rate config for share: %w", err)
	}

	return &rc, nil
}

// Set overwrites the hourly rate. Existing appointments are not touched.
func (r *RateRepository) Set(ctx context.Context, rate float64) error {
	query := `UPDATE rate_config SET hourly_rate = $1, updated_at = now() WHERE id = 1`

	result, err := r.db.Exec(ctx, query, rate)
	if err != nil {
		return fmt.Errorf("set hourly rate: %w", err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("rate config row missing")
	}

	return nil
}
