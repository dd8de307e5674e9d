package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

var userColumns = []string{"id", "merchant_id", "first_name", "last_name", "email", "password_hash", "created_at"}

// UserRepository implements port.UserRepository for staff accounts.
type UserRepository struct {
	db      pgTxStarter
	builder squirrel.StatementBuilderType
}

// NewUserRepository constructs a staff repository. Profile updates need a transaction starter.
func NewUserRepository(db pgTxStarter) *UserRepository {
	return &UserRepository{db: db, builder: newBuilder()}
}

// GetByEmail looks a staff user up by normalized email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.StaffUser, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)})
}

// GetByID looks a staff user up by primary key.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.StaffUser, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// ExistsByEmail reports whether a staff user already uses email.
func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return exists(ctx, r.db, r.builder, "users", domain.NormalizeEmail(email))
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.StaffUser, error) {
	stmt, args, err := r.builder.Select(userColumns...).
		From("users").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	var u domain.StaffUser
	if err := r.db.QueryRow(ctx, stmt, args...).Scan(
		&u.ID,
		&u.MerchantID,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return &u, nil
}

// ListByMerchant pages through a merchant's staff with their aggregated roles, newest first.
func (r *UserRepository) ListByMerchant(ctx context.Context, filter domain.StaffFilter) ([]domain.StaffUser, int, error) {
	where := squirrel.And{squirrel.Eq{"u.merchant_id": filter.MerchantID}}
	if filter.Role != "" {
		where = append(where, squirrel.Expr(
			"u.id IN (SELECT fur.user_id FROM user_roles fur JOIN roles fr ON fr.id = fur.role_id WHERE fr.name = ?)",
			string(filter.Role),
		))
	}

	countStmt, countArgs, err := r.builder.Select("COUNT(*)").
		From("users u").
		Where(where).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count users sql: %w", err)
	}

	var total int
	if err := r.db.QueryRow(ctx, countStmt, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := r.builder.Select(
		"u.id",
		"u.merchant_id",
		"u.first_name",
		"u.last_name",
		"u.email",
		"u.created_at",
		"COALESCE(string_agg(r.name, ',' ORDER BY r.name), '') AS roles",
	).
		From("users u").
		LeftJoin("user_roles ur ON ur.user_id = u.id").
		LeftJoin("roles r ON r.id = ur.role_id").
		Where(where).
		GroupBy("u.id").
		OrderBy("u.id DESC")
	if filter.Page.Size > 0 {
		query = query.Limit(uint64(filter.Page.Size)).Offset(uint64(filter.Page.Offset()))
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []domain.StaffUser
	for rows.Next() {
		var (
			u     domain.StaffUser
			roles string
		)
		if err := rows.Scan(&u.ID, &u.MerchantID, &u.FirstName, &u.LastName, &u.Email, &u.CreatedAt, &roles); err != nil {
			return nil, 0, fmt.Errorf("scan user row: %w", err)
		}
		if roles != "" {
			u.Roles = domain.ParseRoles(strings.Split(roles, ","))
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}

	return users, total, nil
}

// Delete removes a staff user owned by merchantID. Role assignments cascade.
func (r *UserRepository) Delete(ctx context.Context, merchantID, userID int64) error {
	stmt, args, err := r.builder.Delete("users").
		Where(squirrel.Eq{"id": userID, "merchant_id": merchantID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	tag, err := r.db.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Update applies a profile change to a staff user owned by merchantID. A non-nil
// update.Roles replaces the role set in the same transaction.
func (r *UserRepository) Update(ctx context.Context, merchantID, userID int64, update domain.StaffProfileUpdate) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		var roleIDs []int64
		if update.Roles != nil {
			ids, err := resolveRoleIDs(ctx, tx, r.builder, update.Roles)
			if err != nil {
				return err
			}
			roleIDs = ids
		}

		if update.HasProfileChanges() {
			if err := r.updateProfile(ctx, tx, merchantID, userID, update); err != nil {
				return err
			}
		} else if err := r.lockOwned(ctx, tx, merchantID, userID); err != nil {
			return err
		}

		if update.Roles == nil {
			return nil
		}

		stmt, args, err := r.builder.Delete("user_roles").
			Where(squirrel.Eq{"user_id": userID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build delete user roles sql: %w", err)
		}
		if _, err := tx.Exec(ctx, stmt, args...); err != nil {
			return fmt.Errorf("delete user roles: %w", err)
		}
		return assignRoles(ctx, tx, r.builder, userID, roleIDs)
	})
}

func (r *UserRepository) updateProfile(ctx context.Context, exec pgExecutor, merchantID, userID int64, update domain.StaffProfileUpdate) error {
	query := r.builder.Update("users").
		Where(squirrel.Eq{"id": userID, "merchant_id": merchantID})
	if update.FirstName != nil {
		query = query.Set("first_name", *update.FirstName)
	}
	if update.LastName != nil {
		query = query.Set("last_name", *update.LastName)
	}
	if update.Email != nil {
		query = query.Set("email", domain.NormalizeEmail(*update.Email))
	}
	if update.PasswordHash != nil {
		query = query.Set("password_hash", *update.PasswordHash)
	}

	stmt, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build update user sql: %w", err)
	}

	tag, err := exec.Exec(ctx, stmt, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return repository.ErrConflict
		}
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *UserRepository) lockOwned(ctx context.Context, exec pgExecutor, merchantID, userID int64) error {
	stmt, args, err := r.builder.Select("id").
		From("users").
		Where(squirrel.Eq{"id": userID, "merchant_id": merchantID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("build lock user sql: %w", err)
	}

	var id int64
	if err := exec.QueryRow(ctx, stmt, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repository.ErrNotFound
		}
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}
