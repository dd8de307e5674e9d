package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

// ErrForbidden indicates the principal lacks every role the operation accepts,
// or does not own the resource.
var ErrForbidden = errors.New("access denied")

// AuthorizationService resolves effective roles and owning merchants for authenticated
// principals. Staff data is always read from the store, never from token claims.
type AuthorizationService struct {
	users port.UserRepository
	roles port.RoleRepository
}

// NewAuthorizationService constructs an AuthorizationService.
func NewAuthorizationService(users port.UserRepository, roles port.RoleRepository) *AuthorizationService {
	return &AuthorizationService{users: users, roles: roles}
}

// ResolveRoles returns every role for merchants and the stored assignments for staff.
func (s *AuthorizationService) ResolveRoles(ctx context.Context, claims domain.Claims) ([]domain.Role, error) {
	if claims.IsMerchant() {
		return domain.AllRoles(), nil
	}
	roles, err := s.roles.ListByUser(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve roles: %w", err)
	}
	return roles, nil
}

// Authorize grants merchants unconditionally and staff when their resolved roles
// intersect required. It returns the resolved roles on success.
func (s *AuthorizationService) Authorize(ctx context.Context, claims domain.Claims, required ...domain.Role) ([]domain.Role, error) {
	if claims.IsMerchant() {
		return domain.AllRoles(), nil
	}

	roles, err := s.ResolveRoles(ctx, claims)
	if err != nil {
		return nil, err
	}
	if !domain.IntersectsRoles(roles, required) {
		return roles, ErrForbidden
	}
	return roles, nil
}

// ResolveMerchantID returns the merchant that owns the principal's data. A staff member
// whose row has been deleted owns nothing.
func (s *AuthorizationService) ResolveMerchantID(ctx context.Context, claims domain.Claims) (int64, error) {
	if claims.IsMerchant() {
		return claims.ID, nil
	}

	user, err := s.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, ErrForbidden
		}
		return 0, fmt.Errorf("resolve merchant: %w", err)
	}
	return user.MerchantID, nil
}
