package port

import (
	"time"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

// TokenIssuer signs and verifies the access and refresh credential classes.
type TokenIssuer interface {
	IssueAccess(claims domain.Claims) (string, time.Time, error)
	IssueRefresh(claims domain.Claims) (string, time.Time, error)
	VerifyAccess(token string) (domain.Claims, error)
	VerifyRefresh(token string) (domain.Claims, error)
}
