package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
)

const uniqueViolation = "23505"

type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgTxStarter is satisfied by *pgxpool.Pool, pgx.Tx and pgxmock pools.
type pgTxStarter interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

func newBuilder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// inTx runs fn inside a transaction on db, rolling back unless fn and Commit both succeed.
func inTx(ctx context.Context, db pgTxStarter, fn func(tx pgx.Tx) error) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// Store is the PostgreSQL unit of work used where several statements must commit together.
type Store struct {
	db pgTxStarter
}

// NewStore wraps a pool (or any transaction starter) as a port.UnitOfWork.
func NewStore(db pgTxStarter) *Store {
	return &Store{db: db}
}

// WithinTx implements port.UnitOfWork.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, scope port.TxScope) error) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		return fn(ctx, txScope{
			shops:        NewShopRepository(tx),
			transactions: NewTransactionRepository(tx),
		})
	})
}

type txScope struct {
	shops        *ShopRepository
	transactions *TransactionRepository
}

func (s txScope) Shops() port.ShopRepository               { return s.shops }
func (s txScope) Transactions() port.TransactionRepository { return s.transactions }
