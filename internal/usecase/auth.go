package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/security"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the email is unknown or the password does not match.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrMissingToken indicates the request carried no credential.
	ErrMissingToken = errors.New("no token provided")
	// ErrInvalidAccessToken indicates the access token is malformed or signature validation failed.
	ErrInvalidAccessToken = errors.New("invalid access token")
	// ErrExpiredAccessToken indicates the access token has expired.
	ErrExpiredAccessToken = errors.New("access token expired")
	// ErrInvalidRefreshToken indicates the refresh token is missing, malformed or of the wrong class.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrExpiredRefreshToken indicates the refresh token has expired.
	ErrExpiredRefreshToken = errors.New("refresh token expired")
	// ErrPrincipalNotFound indicates the authenticated principal no longer exists.
	ErrPrincipalNotFound = errors.New("principal not found")
)

// IssuedToken is a signed credential together with its expiry.
type IssuedToken struct {
	Value     string
	ExpiresAt time.Time
}

// LoginResult is returned by a successful Login.
type LoginResult struct {
	Claims  domain.Claims
	Access  IssuedToken
	Refresh IssuedToken
}

// Profile is the self-view of an authenticated principal.
type Profile struct {
	ID        int64
	FirstName string
	LastName  string
	Email     string
	Type      domain.PrincipalType
	Roles     []domain.Role
}

// AuthService verifies credentials and issues tokens for merchants and staff.
type AuthService struct {
	merchants port.MerchantRepository
	users     port.UserRepository
	roles     port.RoleRepository
	hasher    port.PasswordHasher
	tokens    port.TokenIssuer
	logger    *zap.Logger
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	merchants port.MerchantRepository,
	users port.UserRepository,
	roles port.RoleRepository,
	hasher port.PasswordHasher,
	tokens port.TokenIssuer,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		merchants: merchants,
		users:     users,
		roles:     roles,
		hasher:    hasher,
		tokens:    tokens,
		logger:    log,
	}
}

// Login checks merchants first and falls back to staff. A merchant whose password does
// not match is rejected without consulting the staff table.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return LoginResult{}, ErrInvalidCredentials
	}

	principal, roles, err := s.lookupPrincipal(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("login for unknown email", zap.String("email", logger.MaskEmail(email)))
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, err
	}

	ok, err := s.hasher.Verify(ctx, password, principal.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.logger.Warn("login with wrong password",
			zap.String("email", logger.MaskEmail(email)),
			zap.String("type", string(principal.Type)),
		)
		return LoginResult{}, ErrInvalidCredentials
	}

	claims := domain.ClaimsFor(principal, roles)
	result, err := s.issuePair(claims)
	if err != nil {
		return LoginResult{}, err
	}

	s.logger.Info("login succeeded",
		zap.Int64("principal_id", principal.ID),
		zap.String("type", string(principal.Type)),
	)
	return result, nil
}

func (s *AuthService) lookupPrincipal(ctx context.Context, email string) (domain.Principal, []domain.Role, error) {
	merchant, err := s.merchants.GetByEmail(ctx, email)
	if err == nil {
		return merchant.Principal(), domain.AllRoles(), nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return domain.Principal{}, nil, fmt.Errorf("lookup merchant: %w", err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Principal{}, nil, repository.ErrNotFound
		}
		return domain.Principal{}, nil, fmt.Errorf("lookup user: %w", err)
	}

	roles, err := s.roles.ListByUser(ctx, user.ID)
	if err != nil {
		return domain.Principal{}, nil, fmt.Errorf("load user roles: %w", err)
	}
	return user.Principal(), roles, nil
}

func (s *AuthService) issuePair(claims domain.Claims) (LoginResult, error) {
	access, accessExp, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshExp, err := s.tokens.IssueRefresh(claims)
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue refresh token: %w", err)
	}
	return LoginResult{
		Claims:  claims,
		Access:  IssuedToken{Value: access, ExpiresAt: accessExp},
		Refresh: IssuedToken{Value: refresh, ExpiresAt: refreshExp},
	}, nil
}

// Refresh verifies a refresh token and mints a new access token carrying the same claims.
// The refresh token itself is not rotated.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (domain.Claims, IssuedToken, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return domain.Claims{}, IssuedToken{}, ErrInvalidRefreshToken
	}

	claims, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return domain.Claims{}, IssuedToken{}, ErrExpiredRefreshToken
		}
		return domain.Claims{}, IssuedToken{}, ErrInvalidRefreshToken
	}

	access, exp, err := s.tokens.IssueAccess(claims)
	if err != nil {
		return domain.Claims{}, IssuedToken{}, fmt.Errorf("issue access token: %w", err)
	}
	return claims, IssuedToken{Value: access, ExpiresAt: exp}, nil
}

// Authenticate validates an access token. Claims are returned only on full success.
func (s *AuthService) Authenticate(_ context.Context, accessToken string) (domain.Claims, error) {
	if strings.TrimSpace(accessToken) == "" {
		return domain.Claims{}, ErrMissingToken
	}

	claims, err := s.tokens.VerifyAccess(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return domain.Claims{}, ErrExpiredAccessToken
		}
		return domain.Claims{}, ErrInvalidAccessToken
	}
	return claims, nil
}

// Profile loads the current principal's name and email together with its resolved roles.
func (s *AuthService) Profile(ctx context.Context, claims domain.Claims, roles []domain.Role) (Profile, error) {
	if claims.IsMerchant() {
		merchant, err := s.merchants.GetByID(ctx, claims.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return Profile{}, ErrPrincipalNotFound
			}
			return Profile{}, fmt.Errorf("load merchant: %w", err)
		}
		return Profile{
			ID:        merchant.ID,
			FirstName: merchant.FirstName,
			LastName:  merchant.LastName,
			Email:     merchant.Email,
			Type:      domain.PrincipalMerchant,
			Roles:     roles,
		}, nil
	}

	user, err := s.users.GetByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Profile{}, ErrPrincipalNotFound
		}
		return Profile{}, fmt.Errorf("load user: %w", err)
	}
	return Profile{
		ID:        user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Email:     user.Email,
		Type:      domain.PrincipalStaff,
		Roles:     roles,
	}, nil
}
