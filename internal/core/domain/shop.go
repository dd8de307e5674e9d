package domain

import (
	"strings"
	"time"
)

// Shop is a merchant-owned storefront transactions are created against.
type Shop struct {
	ID          int64
	ServiceID   string
	MerchantID  int64
	Name        string
	Active      bool
	AccessToken string
	CreatedAt   time.Time
}

// NormalizeServiceID canonicalizes a shop identifier to lowercase 8-4-4-4-12 UUID form.
// Inputs that do not contain 32 hex digits once dashes are removed are returned unchanged.
func NormalizeServiceID(raw string) string {
	clean := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(raw), "-", ""))
	if len(clean) != 32 {
		return raw
	}
	return clean[0:8] + "-" + clean[8:12] + "-" + clean[12:16] + "-" + clean[16:20] + "-" + clean[20:]
}
