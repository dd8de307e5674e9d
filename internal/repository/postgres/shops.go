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

// ShopRepository implements port.ShopRepository.
type ShopRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewShopRepository constructs a repository backed by any executor that satisfies pgExecutor.
func NewShopRepository(exec pgExecutor) *ShopRepository {
	return &ShopRepository{exec: exec, builder: newBuilder()}
}

// GetByServiceID loads a shop by its canonical service id.
func (r *ShopRepository) GetByServiceID(ctx context.Context, serviceID string) (*domain.Shop, error) {
	stmt, args, err := r.builder.Select("id", "service_id", "merchant_id", "name", "active", "created_at").
		From("shops").
		Where(squirrel.Eq{"service_id": serviceID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select shop sql: %w", err)
	}

	var shop domain.Shop
	if err := r.exec.QueryRow(ctx, stmt, args...).Scan(
		&shop.ID,
		&shop.ServiceID,
		&shop.MerchantID,
		&shop.Name,
		&shop.Active,
		&shop.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan shop: %w", err)
	}

	return &shop, nil
}
