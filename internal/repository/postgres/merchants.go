package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

var merchantColumns = []string{"id", "first_name", "last_name", "email", "password_hash", "created_at"}

// MerchantRepository implements port.MerchantRepository.
type MerchantRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewMerchantRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewMerchantRepository(exec pgExecutor) *MerchantRepository {
	return &MerchantRepository{exec: exec, builder: newBuilder()}
}

// GetByEmail looks a merchant up by normalized email.
func (r *MerchantRepository) GetByEmail(ctx context.Context, email string) (*domain.Merchant, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)})
}

// GetByID looks a merchant up by primary key.
func (r *MerchantRepository) GetByID(ctx context.Context, id int64) (*domain.Merchant, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// ExistsByEmail reports whether a merchant already uses email.
func (r *MerchantRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return exists(ctx, r.exec, r.builder, "merchants", domain.NormalizeEmail(email))
}

func (r *MerchantRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.Merchant, error) {
	stmt, args, err := r.builder.Select(merchantColumns...).
		From("merchants").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select merchant sql: %w", err)
	}

	var m domain.Merchant
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&m.ID,
		&m.FirstName,
		&m.LastName,
		&m.Email,
		&m.PasswordHash,
		&m.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan merchant: %w", err)
	}

	return &m, nil
}

func exists(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, table, email string) (bool, error) {
	stmt, args, err := builder.Select("1").
		From(table).
		Where(squirrel.Eq{"email": email}).
		Prefix("SELECT EXISTS(").
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build %s exists sql: %w", table, err)
	}

	var found bool
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&found); err != nil {
		return false, fmt.Errorf("query %s exists: %w", table, err)
	}
	return found, nil
}
