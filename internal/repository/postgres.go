package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomaskovarik271/pipecrm/internal/logging"
)

// querier is satisfied by both *pgxpool.Pool and pgx.Tx so every store
// method works unchanged inside or outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository is the pgx implementation of Repository.
type PostgresRepository struct {
	db     querier
	pool   *pgxpool.Pool // nil when bound to a transaction
	logger *logging.Logger
}

// NewPostgresRepository creates a pool-backed repository.
func NewPostgresRepository(pool *pgxpool.Pool, logger *logging.Logger) *PostgresRepository {
	return &PostgresRepository{db: pool, pool: pool, logger: logger}
}

// WithTx runs fn against a repository bound to a single transaction.
// Nested calls reuse the enclosing transaction.
func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Repository) error) error {
	if r.pool == nil {
		return fn(r)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	txRepo := &PostgresRepository{db: tx, logger: r.logger}
	if err := fn(txRepo); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			r.logger.Error("transaction rollback failed", "error", rbErr)
		}
		return err
	}

	return tx.Commit(ctx)
}

// Ping verifies database connectivity.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	if r.pool != nil {
		return r.pool.Ping(ctx)
	}
	_, err := r.db.Exec(ctx, "SELECT 1")
	return err
}

// wrapNotFound maps pgx.ErrNoRows onto the repository's sentinel.
func wrapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
