package domain

// TokenKind distinguishes the two signed credential classes.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims is the identity payload carried by access and refresh tokens.
type Claims struct {
	ID         int64
	Email      string
	Type       PrincipalType
	Roles      []Role
	MerchantID *int64
}

// IsMerchant reports whether the claims belong to a merchant owner.
func (c Claims) IsMerchant() bool {
	return c.Type == PrincipalMerchant
}

// ClaimsFor builds the token claims for an authenticated principal and its resolved roles.
func ClaimsFor(p Principal, roles []Role) Claims {
	claims := Claims{
		ID:    p.ID,
		Email: p.Email,
		Type:  p.Type,
		Roles: append([]Role(nil), roles...),
	}
	if p.Type == PrincipalStaff && p.MerchantID != 0 {
		merchantID := p.MerchantID
		claims.MerchantID = &merchantID
	}
	return claims
}
