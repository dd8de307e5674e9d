package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/security"
)

const defaultShopName = "Test Shop"

// ErrMalformedProvisioning indicates a message that can never be processed.
var ErrMalformedProvisioning = domain.ErrMalformedProvisioning

// ProvisioningHandler materializes queued account requests. Every call is independent;
// a returned error means the message must be dead-lettered.
type ProvisioningHandler struct {
	hasher   port.PasswordHasher
	accounts port.AccountProvisioner
	claims   port.ProvisioningClaims
	events   port.EventPublisher
	validate *validator.Validate
	shopName string
	logger   *zap.Logger
	now      func() time.Time
}

// NewProvisioningHandler constructs a ProvisioningHandler. claims and events may be nil.
func NewProvisioningHandler(
	hasher port.PasswordHasher,
	accounts port.AccountProvisioner,
	claims port.ProvisioningClaims,
	events port.EventPublisher,
	shopName string,
	log *zap.Logger,
) *ProvisioningHandler {
	if strings.TrimSpace(shopName) == "" {
		shopName = defaultShopName
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProvisioningHandler{
		hasher:   hasher,
		accounts: accounts,
		claims:   claims,
		events:   events,
		validate: validator.New(),
		shopName: shopName,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle decodes body and creates the requested account. It returns nil only after the
// account rows have committed.
func (h *ProvisioningHandler) Handle(ctx context.Context, body []byte) (err error) {
	var req domain.ProvisioningRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.logger.Error("provisioning message is not valid json", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMalformedProvisioning, err)
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "provisioning.handle")
	span.SetAttributes(attribute.String("provisioning.type", string(req.Type)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if req.IdempotencyKey == "" && req.Email != "" {
		req.IdempotencyKey = domain.ProvisioningKey(req.Email)
	}
	defer h.release(ctx, req.IdempotencyKey)

	log := h.logger.With(
		zap.String("type", string(req.Type)),
		zap.String("email", logger.MaskEmail(req.Email)),
		zap.String("idempotency_key", req.IdempotencyKey),
	)

	principalID, merchantID, err := h.provision(ctx, req)
	if err != nil {
		log.Error("provisioning failed", zap.Error(err))
		h.publishFailed(ctx, req, err)
		return err
	}

	log.Info("account provisioned", zap.Int64("principal_id", principalID), zap.Int64("merchant_id", merchantID))
	if h.events != nil {
		if pubErr := h.events.PublishAccountProvisioned(ctx, domain.AccountProvisionedEvent{
			Type:           req.Type,
			Email:          req.Email,
			MerchantID:     merchantID,
			PrincipalID:    principalID,
			IdempotencyKey: req.IdempotencyKey,
			ProvisionedAt:  h.now(),
		}); pubErr != nil {
			log.Warn("publish account provisioned event", zap.Error(pubErr))
		}
	}
	return nil
}

func (h *ProvisioningHandler) provision(ctx context.Context, req domain.ProvisioningRequest) (int64, int64, error) {
	if err := h.validate.StructCtx(ctx, req); err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrMalformedProvisioning, err)
	}

	hash, err := h.hasher.Hash(ctx, req.Password)
	if err != nil {
		return 0, 0, fmt.Errorf("hash password: %w", err)
	}

	switch req.Type {
	case domain.ProvisionMerchantRegistration:
		accessKey, err := security.NewShopAccessKey()
		if err != nil {
			return 0, 0, err
		}
		id, err := h.accounts.CreateMerchantWithShop(ctx, domain.Merchant{
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			PasswordHash: hash,
		}, domain.DefaultShop{
			ServiceID:   uuid.NewString(),
			Name:        h.shopName,
			AccessToken: accessKey,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("create merchant: %w", err)
		}
		return id, id, nil

	case domain.ProvisionStaffCreation:
		roles, err := parseKnownRoles(req.Roles)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: %v", ErrMalformedProvisioning, err)
		}
		id, err := h.accounts.CreateStaffWithRoles(ctx, domain.StaffUser{
			MerchantID:   *req.MerchantID,
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			PasswordHash: hash,
		}, roles)
		if err != nil {
			return 0, 0, fmt.Errorf("create staff user: %w", err)
		}
		return id, *req.MerchantID, nil
	}

	return 0, 0, fmt.Errorf("%w: unsupported type %q", ErrMalformedProvisioning, req.Type)
}

func (h *ProvisioningHandler) release(ctx context.Context, key string) {
	if h.claims == nil || key == "" {
		return
	}
	if err := h.claims.Release(context.WithoutCancel(ctx), key); err != nil {
		h.logger.Warn("release provisioning claim", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (h *ProvisioningHandler) publishFailed(ctx context.Context, req domain.ProvisioningRequest, cause error) {
	if h.events == nil {
		return
	}
	if err := h.events.PublishProvisioningFailed(ctx, domain.ProvisioningFailedEvent{
		Type:           req.Type,
		Email:          req.Email,
		IdempotencyKey: req.IdempotencyKey,
		Reason:         cause.Error(),
		FailedAt:       h.now(),
	}); err != nil {
		h.logger.Warn("publish provisioning failed event", zap.Error(err))
	}
}
