package postgres

import (
	"context"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

// RoleRepository implements port.RoleRepository.
type RoleRepository struct {
	db      pgTxStarter
	builder squirrel.StatementBuilderType
}

// NewRoleRepository constructs a role repository. Replacing roles needs a transaction starter.
func NewRoleRepository(db pgTxStarter) *RoleRepository {
	return &RoleRepository{db: db, builder: newBuilder()}
}

// ListByUser resolves the role names assigned to a staff user.
func (r *RoleRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Role, error) {
	stmt, args, err := r.builder.Select("r.name").
		From("user_roles ur").
		Join("roles r ON r.id = ur.role_id").
		Where(squirrel.Eq{"ur.user_id": userID}).
		OrderBy("r.name ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list user roles sql: %w", err)
	}

	rows, err := r.db.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query user roles: %w", err)
	}
	defer rows.Close()

	var roles []domain.Role
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan user role: %w", err)
		}
		roles = append(roles, domain.Role(name))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate user roles: %w", err)
	}

	return roles, nil
}

// ReplaceForUser swaps the user's assignments for roles in one transaction.
func (r *RoleRepository) ReplaceForUser(ctx context.Context, userID int64, roles []domain.Role) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		ids, err := resolveRoleIDs(ctx, tx, r.builder, roles)
		if err != nil {
			return err
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

		return assignRoles(ctx, tx, r.builder, userID, ids)
	})
}

// resolveRoleIDs maps role names to ids, failing with ErrUnknownRole when any name is missing.
func resolveRoleIDs(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, roles []domain.Role) ([]int64, error) {
	if len(roles) == 0 {
		return nil, nil
	}

	stmt, args, err := builder.Select("id", "name").
		From("roles").
		Where(squirrel.Eq{"name": domain.RoleNames(roles)}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build resolve roles sql: %w", err)
	}

	rows, err := exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query roles: %w", err)
	}
	defer rows.Close()

	byName := make(map[domain.Role]int64, len(roles))
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		byName[domain.Role(name)] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}

	ids := make([]int64, 0, len(roles))
	for _, role := range roles {
		id, ok := byName[role]
		if !ok {
			return nil, fmt.Errorf("%w: %s", repository.ErrUnknownRole, role)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func assignRoles(ctx context.Context, exec pgExecutor, builder squirrel.StatementBuilderType, userID int64, roleIDs []int64) error {
	if len(roleIDs) == 0 {
		return nil
	}

	insert := builder.Insert("user_roles").Columns("user_id", "role_id")
	for _, id := range roleIDs {
		insert = insert.Values(userID, id)
	}

	stmt, args, err := insert.ToSql()
	if err != nil {
		return fmt.Errorf("build assign roles sql: %w", err)
	}
	if _, err := exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("assign roles: %w", err)
	}
	return nil
}
