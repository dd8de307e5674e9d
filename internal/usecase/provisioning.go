package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
)

const (
	tracerName             = "github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
	defaultClaimTTL        = 10 * time.Minute
	minPasswordLength      = 6
	provisioningSpanPrefix = "provisioning."
)

var (
	// ErrEmailTaken indicates an account with the email exists or is already queued.
	ErrEmailTaken = errors.New("email already registered or pending")
	// ErrRolesRequired indicates a staff request without any role.
	ErrRolesRequired = errors.New("roles array is required")
	// ErrUnknownRole indicates a role name outside the fixed role set.
	ErrUnknownRole = errors.New("unknown role")
	// ErrInvalidAccountInput indicates missing or malformed registration fields.
	ErrInvalidAccountInput = errors.New("invalid account input")
)

// AccountInput carries the fields shared by merchant registration and staff creation.
type AccountInput struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// ProvisioningService validates account requests and queues them for deferred creation.
// A request is accepted only once per email until the worker finishes with it.
type ProvisioningService struct {
	merchants port.MerchantRepository
	users     port.UserRepository
	claims    port.ProvisioningClaims
	publisher port.ProvisioningPublisher
	claimTTL  time.Duration
	logger    *zap.Logger
}

// NewProvisioningService constructs a ProvisioningService. claimTTL bounds how long an
// unprocessed request blocks its email.
func NewProvisioningService(
	merchants port.MerchantRepository,
	users port.UserRepository,
	claims port.ProvisioningClaims,
	publisher port.ProvisioningPublisher,
	claimTTL time.Duration,
	log *zap.Logger,
) *ProvisioningService {
	if claimTTL <= 0 {
		claimTTL = defaultClaimTTL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &ProvisioningService{
		merchants: merchants,
		users:     users,
		claims:    claims,
		publisher: publisher,
		claimTTL:  claimTTL,
		logger:    log,
	}
}

// RegisterMerchant queues a merchant account with its default shop.
func (s *ProvisioningService) RegisterMerchant(ctx context.Context, input AccountInput) error {
	if err := validateAccountInput(input); err != nil {
		return err
	}
	return s.enqueue(ctx, domain.ProvisioningRequest{
		Type:      domain.ProvisionMerchantRegistration,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Email:     domain.NormalizeEmail(input.Email),
		Password:  input.Password,
	})
}

// ScheduleStaff queues a staff account for merchantID with the given roles.
func (s *ProvisioningService) ScheduleStaff(ctx context.Context, merchantID int64, input AccountInput, rawRoles []string) error {
	if err := validateAccountInput(input); err != nil {
		return err
	}
	roles, err := parseKnownRoles(rawRoles)
	if err != nil {
		return err
	}

	return s.enqueue(ctx, domain.ProvisioningRequest{
		Type:       domain.ProvisionStaffCreation,
		FirstName:  input.FirstName,
		LastName:   input.LastName,
		Email:      domain.NormalizeEmail(input.Email),
		Password:   input.Password,
		Roles:      domain.RoleNames(roles),
		MerchantID: &merchantID,
	})
}

func (s *ProvisioningService) enqueue(ctx context.Context, req domain.ProvisioningRequest) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, provisioningSpanPrefix+string(req.Type))
	defer func() {
		if err != nil && !errors.Is(err, ErrEmailTaken) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	taken, err := s.emailTaken(ctx, req.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrEmailTaken
	}

	req.IdempotencyKey = domain.ProvisioningKey(req.Email)
	span.SetAttributes(attribute.String("provisioning.key", req.IdempotencyKey))

	claimed, err := s.claims.Claim(ctx, req.IdempotencyKey, s.claimTTL)
	if err != nil {
		return fmt.Errorf("claim provisioning key: %w", err)
	}
	if !claimed {
		s.logger.Info("duplicate provisioning request rejected",
			zap.String("type", string(req.Type)),
			zap.String("email", logger.MaskEmail(req.Email)),
		)
		return ErrEmailTaken
	}

	if err := s.publisher.Publish(ctx, req); err != nil {
		if releaseErr := s.claims.Release(ctx, req.IdempotencyKey); releaseErr != nil {
			s.logger.Warn("release provisioning claim after publish failure", zap.Error(releaseErr))
		}
		return fmt.Errorf("publish provisioning request: %w", err)
	}

	s.logger.Info("provisioning request queued",
		zap.String("type", string(req.Type)),
		zap.String("email", logger.MaskEmail(req.Email)),
		zap.String("idempotency_key", req.IdempotencyKey),
	)
	return nil
}

func (s *ProvisioningService) emailTaken(ctx context.Context, email string) (bool, error) {
	exists, err := s.merchants.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check merchant email: %w", err)
	}
	if exists {
		return true, nil
	}
	exists, err = s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check user email: %w", err)
	}
	return exists, nil
}

func validateAccountInput(input AccountInput) error {
	switch {
	case input.FirstName == "" || input.LastName == "":
		return fmt.Errorf("%w: first and last name are required", ErrInvalidAccountInput)
	case domain.NormalizeEmail(input.Email) == "":
		return fmt.Errorf("%w: email is required", ErrInvalidAccountInput)
	case len(input.Password) < minPasswordLength:
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidAccountInput, minPasswordLength)
	}
	return nil
}

func parseKnownRoles(raw []string) ([]domain.Role, error) {
	roles := domain.ParseRoles(raw)
	if len(roles) == 0 {
		return nil, ErrRolesRequired
	}
	known := domain.AllRoles()
	for _, r := range roles {
		if !domain.IntersectsRoles([]domain.Role{r}, known) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRole, r)
		}
	}
	return roles, nil
}
