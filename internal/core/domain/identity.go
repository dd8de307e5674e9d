package domain

import (
	"strings"
	"time"
)

// PrincipalType distinguishes merchant owners from their delegated staff.
type PrincipalType string

const (
	PrincipalMerchant PrincipalType = "merchant"
	PrincipalStaff    PrincipalType = "staff"
)

// Valid reports whether the type is one the gateway issues tokens for.
func (t PrincipalType) Valid() bool {
	return t == PrincipalMerchant || t == PrincipalStaff
}

// Principal is an account that can authenticate against the gateway.
type Principal struct {
	ID           int64
	Email        string
	Type         PrincipalType
	PasswordHash string
	MerchantID   int64
	FirstName    string
	LastName     string
	CreatedAt    time.Time
}

// Merchant owns shops and implicitly holds every role.
type Merchant struct {
	ID           int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Principal projects the merchant as an authenticated identity.
func (m Merchant) Principal() Principal {
	return Principal{
		ID:           m.ID,
		Email:        m.Email,
		Type:         PrincipalMerchant,
		PasswordHash: m.PasswordHash,
		MerchantID:   m.ID,
		FirstName:    m.FirstName,
		LastName:     m.LastName,
		CreatedAt:    m.CreatedAt,
	}
}

// StaffUser is a delegated account attached to a merchant.
type StaffUser struct {
	ID           int64
	MerchantID   int64
	FirstName    string
	LastName     string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
}

// Principal projects the staff member as an authenticated identity.
func (u StaffUser) Principal() Principal {
	return Principal{
		ID:           u.ID,
		Email:        u.Email,
		Type:         PrincipalStaff,
		PasswordHash: u.PasswordHash,
		MerchantID:   u.MerchantID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		CreatedAt:    u.CreatedAt,
	}
}

// NormalizeEmail lowercases and trims an address for lookups and idempotency keys.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Page describes a window of a listing.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before the page starts.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// TotalPages returns how many pages of size p.Size cover total rows.
func (p Page) TotalPages(total int) int {
	if p.Size <= 0 || total <= 0 {
		return 0
	}
	return (total + p.Size - 1) / p.Size
}

// StaffFilter narrows a staff listing.
type StaffFilter struct {
	MerchantID int64
	Role       Role
	Page       Page
}

// StaffProfileUpdate is a partial change to a staff account. Nil fields keep their stored
// value; a nil Roles slice keeps the current assignments.
type StaffProfileUpdate struct {
	FirstName    *string
	LastName     *string
	Email        *string
	PasswordHash *string
	Roles        []Role
}

// HasProfileChanges reports whether any column of the users row changes.
func (u StaffProfileUpdate) HasProfileChanges() bool {
	return u.FirstName != nil || u.LastName != nil || u.Email != nil || u.PasswordHash != nil
}
