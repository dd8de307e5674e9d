package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

// AccountRepository implements port.AccountProvisioner. Each creation writes every row
// or none.
type AccountRepository struct {
	db      pgTxStarter
	builder squirrel.StatementBuilderType
}

// NewAccountRepository constructs an account provisioner on a pool or transaction starter.
func NewAccountRepository(db pgTxStarter) *AccountRepository {
	return &AccountRepository{db: db, builder: newBuilder()}
}

// CreateMerchantWithShop inserts the merchant and its default shop, returning the merchant id.
func (r *AccountRepository) CreateMerchantWithShop(ctx context.Context, merchant domain.Merchant, shop domain.DefaultShop) (int64, error) {
	var merchantID int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		stmt, args, err := r.builder.Insert("merchants").
			Columns("first_name", "last_name", "email", "password_hash").
			Values(merchant.FirstName, merchant.LastName, domain.NormalizeEmail(merchant.Email), merchant.PasswordHash).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert merchant sql: %w", err)
		}
		if err := tx.QueryRow(ctx, stmt, args...).Scan(&merchantID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert merchant: %w", repository.ErrConflict)
			}
			return fmt.Errorf("insert merchant: %w", err)
		}

		stmt, args, err = r.builder.Insert("shops").
			Columns("service_id", "merchant_id", "name", "active", "access_token").
			Values(shop.ServiceID, merchantID, shop.Name, true, shop.AccessToken).
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert shop sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert shop: %w", repository.ErrConflict)
			}
			return fmt.Errorf("insert shop: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return merchantID, nil
}

// CreateStaffWithRoles inserts a staff user and its role assignments, returning the user id.
func (r *AccountRepository) CreateStaffWithRoles(ctx context.Context, user domain.StaffUser, roles []domain.Role) (int64, error) {
	var userID int64
	err := inTx(ctx, r.db, func(tx pgx.Tx) error {
		roleIDs, err := resolveRoleIDs(ctx, tx, r.builder, roles)
		if err != nil {
			return err
		}

		stmt, args, err := r.builder.Insert("users").
			Columns("merchant_id", "first_name", "last_name", "email", "password_hash").
			Values(user.MerchantID, user.FirstName, user.LastName, domain.NormalizeEmail(user.Email), user.PasswordHash).
			Suffix("RETURNING id").
			ToSql()
		if err != nil {
			return fmt.Errorf("build insert user sql: %w", err)
		}
		if err := tx.QueryRow(ctx, stmt, args...).Scan(&userID); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert user: %w", repository.ErrConflict)
			}
			return fmt.Errorf("insert user: %w", err)
		}

		return assignRoles(ctx, tx, r.builder, userID, roleIDs)
	})
	if err != nil {
		return 0, err
	}
	return userID, nil
}
