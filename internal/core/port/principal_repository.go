package port

import (
	"context"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

// MerchantRepository reads merchant owners.
type MerchantRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.Merchant, error)
	GetByID(ctx context.Context, id int64) (*domain.Merchant, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// UserRepository reads and maintains staff accounts.
type UserRepository interface {
	GetByEmail(ctx context.Context, email string) (*domain.StaffUser, error)
	GetByID(ctx context.Context, id int64) (*domain.StaffUser, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ListByMerchant(ctx context.Context, filter domain.StaffFilter) ([]domain.StaffUser, int, error)
	Update(ctx context.Context, merchantID, userID int64, update domain.StaffProfileUpdate) error
	Delete(ctx context.Context, merchantID, userID int64) error
}

// RoleRepository resolves and replaces staff role assignments.
type RoleRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.Role, error)
	ReplaceForUser(ctx context.Context, userID int64, roles []domain.Role) error
}

// AccountProvisioner performs the atomic multi-row account creations run by the worker.
type AccountProvisioner interface {
	CreateMerchantWithShop(ctx context.Context, merchant domain.Merchant, shop domain.DefaultShop) (int64, error)
	CreateStaffWithRoles(ctx context.Context, user domain.StaffUser, roles []domain.Role) (int64, error)
}
