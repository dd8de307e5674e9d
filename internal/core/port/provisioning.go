package port

import (
	"context"
	"time"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

// ProvisioningPublisher hands provisioning requests to the delayed-delivery broker.
type ProvisioningPublisher interface {
	Publish(ctx context.Context, request domain.ProvisioningRequest) error
}

// ProvisioningClaims tracks in-flight provisioning keys so duplicates are rejected.
type ProvisioningClaims interface {
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}
