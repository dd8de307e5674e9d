package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

func TestUserRepository_ListByMerchant_AggregatesRoles(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users u WHERE`).
		WithArgs(int64(5), "Finansowa").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(6))
	mock.ExpectQuery(`string_agg\(r\.name.*GROUP BY u\.id ORDER BY u\.id DESC LIMIT 5 OFFSET 5`).
		WithArgs(int64(5), "Finansowa").
		WillReturnRows(pgxmock.NewRows([]string{"id", "merchant_id", "first_name", "last_name", "email", "created_at", "roles"}).
			AddRow(int64(1), int64(5), "Jan", "Kowalski", "jan@example.com", time.Now(), "Finansowa,Techniczna"))

	users, total, err := repo.ListByMerchant(context.Background(), domain.StaffFilter{
		MerchantID: 5,
		Role:       domain.RoleFinancial,
		Page:       domain.Page{Number: 2, Size: 5},
	})
	if err != nil {
		t.Fatalf("ListByMerchant returned error: %v", err)
	}
	if total != 6 || len(users) != 1 {
		t.Fatalf("unexpected listing: total=%d users=%d", total, len(users))
	}
	if got := users[0].Roles; len(got) != 2 || got[0] != domain.RoleFinancial || got[1] != domain.RoleTechnical {
		t.Fatalf("unexpected roles: %v", got)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Delete_ScopedToMerchant(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1 AND merchant_id = \$2`).
		WithArgs(int64(9), int64(5)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	if err := repo.Delete(context.Background(), 5, 9); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestMerchantRepository_ExistsByEmail(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewMerchantRepository(mock)

	mock.ExpectQuery(`SELECT EXISTS\( SELECT 1 FROM merchants WHERE email = \$1 \)`).
		WithArgs("ada@example.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	found, err := repo.ExistsByEmail(context.Background(), "ADA@example.com")
	if err != nil {
		t.Fatalf("ExistsByEmail returned error: %v", err)
	}
	if !found {
		t.Fatal("expected merchant to exist")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func strPtr(v string) *string { return &v }

func TestUserRepository_Update_ProfileAndRolesInOneTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name FROM roles WHERE name IN \(\$1\)`).
		WithArgs("Finansowa").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(3), "Finansowa"))
	mock.ExpectExec(`UPDATE users SET first_name = \$1, email = \$2, password_hash = \$3 WHERE id = \$4 AND merchant_id = \$5`).
		WithArgs("Ewa", "ewa@example.com", "hash", int64(9), int64(5)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`DELETE FROM user_roles WHERE user_id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO user_roles \(user_id,role_id\) VALUES \(\$1,\$2\)`).
		WithArgs(int64(9), int64(3)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err = repo.Update(context.Background(), 5, 9, domain.StaffProfileUpdate{
		FirstName:    strPtr("Ewa"),
		Email:        strPtr("EWA@example.com"),
		PasswordHash: strPtr("hash"),
		Roles:        []domain.Role{domain.RoleFinancial},
	})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Update_RolesOnlyLocksOwnedRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id, name FROM roles`).
		WithArgs("Techniczna").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name"}).AddRow(int64(2), "Techniczna"))
	mock.ExpectQuery(`SELECT id FROM users WHERE id = \$1 AND merchant_id = \$2 FOR UPDATE`).
		WithArgs(int64(9), int64(5)).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err = repo.Update(context.Background(), 5, 9, domain.StaffProfileUpdate{Roles: []domain.Role{domain.RoleTechnical}})
	if !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestUserRepository_Update_DuplicateEmailRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewUserRepository(mock)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE users SET email = \$1 WHERE id = \$2 AND merchant_id = \$3`).
		WithArgs("taken@example.com", int64(9), int64(5)).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})
	mock.ExpectRollback()

	err = repo.Update(context.Background(), 5, 9, domain.StaffProfileUpdate{Email: strPtr("taken@example.com")})
	if !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
