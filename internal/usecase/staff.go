package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

const (
	defaultStaffPageSize = 5
	maxStaffPageSize     = 100
)

var (
	// ErrUserNotFound indicates no staff user of the merchant matches the id.
	ErrUserNotFound = errors.New("user not found")
	// ErrSelfRoleChange indicates a staff member tried to edit their own roles.
	ErrSelfRoleChange = errors.New("cannot change your own roles")
	// ErrNoFieldsToUpdate indicates a profile update that changes nothing.
	ErrNoFieldsToUpdate = errors.New("no fields to update")
)

// StaffUpdateInput is a partial profile change. Nil or blank fields keep their value and a
// nil Roles slice keeps the current assignments.
type StaffUpdateInput struct {
	FirstName *string
	LastName  *string
	Email     *string
	Password  *string
	Roles     []string
}

// StaffPage is one window of a merchant's staff listing.
type StaffPage struct {
	Users      []domain.StaffUser
	Total      int
	Page       int
	TotalPages int
}

// StaffService administers a merchant's staff accounts.
type StaffService struct {
	users     port.UserRepository
	roles     port.RoleRepository
	merchants MerchantResolver
	hasher    port.PasswordHasher
	logger    *zap.Logger
}

// NewStaffService constructs a StaffService.
func NewStaffService(
	users port.UserRepository,
	roles port.RoleRepository,
	merchants MerchantResolver,
	hasher port.PasswordHasher,
	log *zap.Logger,
) *StaffService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StaffService{users: users, roles: roles, merchants: merchants, hasher: hasher, logger: log}
}

// List returns the merchant's staff, newest first, optionally narrowed to one role.
func (s *StaffService) List(ctx context.Context, claims domain.Claims, role string, page, limit int) (StaffPage, error) {
	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		return StaffPage{}, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultStaffPageSize
	}
	if limit > maxStaffPageSize {
		limit = maxStaffPageSize
	}

	filter := domain.StaffFilter{
		MerchantID: merchantID,
		Role:       domain.Role(role),
		Page:       domain.Page{Number: page, Size: limit},
	}
	users, total, err := s.users.ListByMerchant(ctx, filter)
	if err != nil {
		return StaffPage{}, fmt.Errorf("list staff: %w", err)
	}
	if users == nil {
		users = []domain.StaffUser{}
	}

	return StaffPage{
		Users:      users,
		Total:      total,
		Page:       page,
		TotalPages: filter.Page.TotalPages(total),
	}, nil
}

// ReplaceRoles swaps the role set of one of the merchant's staff users.
func (s *StaffService) ReplaceRoles(ctx context.Context, claims domain.Claims, userID int64, rawRoles []string) ([]domain.Role, error) {
	roles, err := parseKnownRoles(rawRoles)
	if err != nil {
		return nil, err
	}
	if !claims.IsMerchant() && claims.ID == userID {
		return nil, ErrSelfRoleChange
	}

	if _, err := s.ownedUser(ctx, claims, userID); err != nil {
		return nil, err
	}

	if err := s.roles.ReplaceForUser(ctx, userID, roles); err != nil {
		if errors.Is(err, repository.ErrUnknownRole) {
			return nil, fmt.Errorf("%w: %v", ErrUnknownRole, err)
		}
		return nil, fmt.Errorf("replace roles: %w", err)
	}

	s.logger.Info("staff roles replaced",
		zap.Int64("user_id", userID),
		zap.Int64("changed_by", claims.ID),
		zap.Strings("roles", domain.RoleNames(roles)),
	)
	return roles, nil
}

// Update changes the profile and, when input.Roles is set, the role set of one of the
// merchant's staff users. A new password is re-hashed before it is stored.
func (s *StaffService) Update(ctx context.Context, claims domain.Claims, userID int64, input StaffUpdateInput) error {
	update := domain.StaffProfileUpdate{
		FirstName: trimmedOrNil(input.FirstName),
		LastName:  trimmedOrNil(input.LastName),
	}
	if email := trimmedOrNil(input.Email); email != nil {
		normalized := domain.NormalizeEmail(*email)
		update.Email = &normalized
	}
	var password string
	if input.Password != nil {
		password = *input.Password
	}
	if !update.HasProfileChanges() && password == "" && input.Roles == nil {
		return ErrNoFieldsToUpdate
	}
	if password != "" && len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccountInput, minPasswordLength)
	}

	if input.Roles != nil {
		if !claims.IsMerchant() && claims.ID == userID {
			return ErrSelfRoleChange
		}
		roles, err := parseKnownRoles(input.Roles)
		if err != nil {
			return err
		}
		update.Roles = roles
	}

	user, err := s.ownedUser(ctx, claims, userID)
	if err != nil {
		return err
	}

	if update.Email != nil && *update.Email != user.Email {
		taken, err := s.users.ExistsByEmail(ctx, *update.Email)
		if err != nil {
			return fmt.Errorf("check user email: %w", err)
		}
		if taken {
			return ErrEmailTaken
		}
	}

	if password != "" {
		hash, err := s.hasher.Hash(ctx, password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		update.PasswordHash = &hash
	}

	if err := s.users.Update(ctx, user.MerchantID, userID, update); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return ErrUserNotFound
		case errors.Is(err, repository.ErrConflict):
			return ErrEmailTaken
		case errors.Is(err, repository.ErrUnknownRole):
			return fmt.Errorf("%w: %v", ErrUnknownRole, err)
		}
		return fmt.Errorf("update staff user: %w", err)
	}

	fields := []zap.Field{
		zap.Int64("user_id", userID),
		zap.Int64("changed_by", claims.ID),
		zap.Bool("password_changed", update.PasswordHash != nil),
	}
	if update.Roles != nil {
		fields = append(fields, zap.Strings("roles", domain.RoleNames(update.Roles)))
	}
	s.logger.Info("staff user updated", fields...)
	return nil
}

// Delete removes one of the merchant's staff users. Tokens already issued to that user
// stay valid until they expire.
func (s *StaffService) Delete(ctx context.Context, claims domain.Claims, userID int64) error {
	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		return err
	}

	if err := s.users.Delete(ctx, merchantID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("delete staff user: %w", err)
	}

	s.logger.Info("staff user deleted", zap.Int64("user_id", userID), zap.Int64("deleted_by", claims.ID))
	return nil
}

func (s *StaffService) ownedUser(ctx context.Context, claims domain.Claims, userID int64) (*domain.StaffUser, error) {
	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("lookup staff user: %w", err)
	}
	if user.MerchantID != merchantID {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
