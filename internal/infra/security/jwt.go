package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

var (
	// ErrTokenExpired is returned for a well-signed token past its expiry.
	ErrTokenExpired = errors.New("jwt: token expired")
	// ErrTokenInvalid covers malformed tokens, bad signatures and wrong token classes.
	ErrTokenInvalid = errors.New("jwt: token invalid")
	// ErrSecretMissing is returned when a signing secret is not configured.
	ErrSecretMissing = errors.New("jwt: signing secret missing")
)

const (
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// TokenClaims is the signed payload shared by access and refresh tokens.
type TokenClaims struct {
	UserID     int64    `json:"id"`
	Email      string   `json:"email"`
	Type       string   `json:"type"`
	Roles      []string `json:"roles"`
	MerchantID *int64   `json:"merchantId,omitempty"`
	Kind       string   `json:"kind"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures NewTokenIssuer.
type TokenIssuerConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Now           func() time.Time
}

// TokenIssuer signs and verifies HS256 access and refresh tokens with distinct secrets.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenIssuer fails when either secret is missing or both secrets are equal.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if strings.TrimSpace(cfg.AccessSecret) == "" {
		return nil, fmt.Errorf("%w: access", ErrSecretMissing)
	}
	if strings.TrimSpace(cfg.RefreshSecret) == "" {
		return nil, fmt.Errorf("%w: refresh", ErrSecretMissing)
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, errors.New("jwt: access and refresh secrets must differ")
	}

	issuer := &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        strings.TrimSpace(cfg.Issuer),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           cfg.Now,
	}
	if issuer.accessTTL <= 0 {
		issuer.accessTTL = defaultAccessTokenTTL
	}
	if issuer.refreshTTL <= 0 {
		issuer.refreshTTL = defaultRefreshTokenTTL
	}
	if issuer.now == nil {
		issuer.now = time.Now
	}
	return issuer, nil
}

// AccessTTL returns the configured access token lifetime.
func (i *TokenIssuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (i *TokenIssuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccess signs claims as a short-lived access token and returns it with its expiry.
func (i *TokenIssuer) IssueAccess(claims domain.Claims) (string, time.Time, error) {
	return i.issue(claims, domain.TokenAccess, i.accessSecret, i.accessTTL)
}

// IssueRefresh signs claims as a long-lived refresh token and returns it with its expiry.
func (i *TokenIssuer) IssueRefresh(claims domain.Claims) (string, time.Time, error) {
	return i.issue(claims, domain.TokenRefresh, i.refreshSecret, i.refreshTTL)
}

// VerifyAccess validates an access token and returns its identity claims.
func (i *TokenIssuer) VerifyAccess(token string) (domain.Claims, error) {
	return i.verify(token, domain.TokenAccess, i.accessSecret)
}

// VerifyRefresh validates a refresh token and returns its identity claims.
func (i *TokenIssuer) VerifyRefresh(token string) (domain.Claims, error) {
	return i.verify(token, domain.TokenRefresh, i.refreshSecret)
}

func (i *TokenIssuer) issue(claims domain.Claims, kind domain.TokenKind, secret []byte, ttl time.Duration) (string, time.Time, error) {
	if claims.ID == 0 {
		return "", time.Time{}, fmt.Errorf("jwt: principal id is required")
	}
	if !claims.Type.Valid() {
		return "", time.Time{}, fmt.Errorf("jwt: unsupported principal type %q", claims.Type)
	}

	now := i.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	payload := TokenClaims{
		UserID:     claims.ID,
		Email:      claims.Email,
		Type:       string(claims.Type),
		Roles:      domain.RoleNames(claims.Roles),
		MerchantID: claims.MerchantID,
		Kind:       string(kind),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   fmt.Sprintf("%s:%d", claims.Type, claims.ID),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("jwt: sign %s token: %w", kind, err)
	}
	return signed, expiresAt, nil
}

func (i *TokenIssuer) verify(raw string, kind domain.TokenKind, secret []byte) (domain.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Claims{}, ErrTokenInvalid
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	var payload TokenClaims
	token, err := jwt.ParseWithClaims(raw, &payload, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return domain.Claims{}, ErrTokenExpired
		}
		return domain.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !token.Valid || payload.Kind != string(kind) {
		return domain.Claims{}, ErrTokenInvalid
	}

	principalType := domain.PrincipalType(payload.Type)
	if payload.UserID == 0 || !principalType.Valid() {
		return domain.Claims{}, ErrTokenInvalid
	}

	return domain.Claims{
		ID:         payload.UserID,
		Email:      payload.Email,
		Type:       principalType,
		Roles:      domain.ParseRoles(payload.Roles),
		MerchantID: payload.MerchantID,
	}, nil
}
