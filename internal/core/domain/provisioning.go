package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrMalformedProvisioning marks a provisioning message that can never be processed.
var ErrMalformedProvisioning = errors.New("malformed provisioning message")

// ProvisioningType selects the account shape the worker materializes.
type ProvisioningType string

const (
	ProvisionMerchantRegistration ProvisioningType = "merchant_registration"
	ProvisionStaffCreation        ProvisioningType = "staff_creation"
)

// ProvisioningRequest is the broker payload for deferred account creation.
// Password is plaintext and only lives in flight; the worker hashes it.
type ProvisioningRequest struct {
	Type           ProvisioningType `json:"type" validate:"required,oneof=merchant_registration staff_creation"`
	FirstName      string           `json:"firstName" validate:"required,max=255"`
	LastName       string           `json:"lastName" validate:"required,max=255"`
	Email          string           `json:"email" validate:"required,email"`
	Password       string           `json:"password" validate:"required,min=6"`
	Roles          []string         `json:"roles,omitempty" validate:"required_if=Type staff_creation,dive,required"`
	MerchantID     *int64           `json:"merchantId,omitempty" validate:"required_if=Type staff_creation"`
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
}

// ProvisioningKey derives the deterministic idempotency key for an account email.
func ProvisioningKey(email string) string {
	sum := sha256.Sum256([]byte(NormalizeEmail(email)))
	return hex.EncodeToString(sum[:])
}

// DefaultShop describes the shop created alongside a newly registered merchant.
type DefaultShop struct {
	ServiceID   string
	Name        string
	AccessToken string
}
