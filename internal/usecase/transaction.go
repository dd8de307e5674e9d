package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	appLogger "github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

const (
	defaultTransactionPageSize = 25
	maxTransactionPageSize     = 100
	defaultLinkBaseURL         = "http://localhost:8080/pay"
)

var (
	// ErrShopNotFound indicates no shop matches the service id.
	ErrShopNotFound = errors.New("shop not found")
	// ErrShopInactive indicates the shop exists but is deactivated.
	ErrShopInactive = errors.New("shop is deactivated")
	// ErrShopForbidden indicates the shop belongs to another merchant.
	ErrShopForbidden = errors.New("unauthorized to access this shop")
	// ErrTransactionNotFound indicates no owned transaction matches the id.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrPaymentLinkNotFound indicates no transaction carries the payment link id.
	ErrPaymentLinkNotFound = errors.New("payment link not found")
	// ErrInvalidStatus indicates a status literal outside the allowed set.
	ErrInvalidStatus = domain.ErrInvalidStatus
)

// MerchantResolver maps an authenticated principal to the merchant owning its data.
type MerchantResolver interface {
	ResolveMerchantID(ctx context.Context, claims domain.Claims) (int64, error)
}

// TransactionInput is the payload for creating a transaction or a payment link.
type TransactionInput struct {
	ServiceID string
	Amount    float64
	Currency  string
	Title     string
	Customer  domain.Customer
}

// PaymentLink is the result of GenerateLink.
type PaymentLink struct {
	URL           string
	PaymentLinkID string
	TransactionID int64
}

// TransactionQuery is the raw listing request before defaults are applied.
type TransactionQuery struct {
	Page      int
	Limit     int
	Status    string
	Currency  string
	Search    string
	SortBy    string
	SortOrder string
}

// TransactionPage is one window of a merchant's transactions.
type TransactionPage struct {
	Items      []domain.Transaction
	Page       int
	Limit      int
	Total      int
	TotalPages int
	HasNext    bool
	HasPrev    bool
}

// TransactionService manages transactions and payment links.
type TransactionService struct {
	uow          port.UnitOfWork
	shops        port.ShopRepository
	transactions port.TransactionRepository
	merchants    MerchantResolver
	events       port.EventPublisher
	linkBaseURL  string
	logger       *zap.Logger
	now          func() time.Time
}

// NewTransactionService constructs a TransactionService. events may be nil.
func NewTransactionService(
	uow port.UnitOfWork,
	shops port.ShopRepository,
	transactions port.TransactionRepository,
	merchants MerchantResolver,
	events port.EventPublisher,
	linkBaseURL string,
	log *zap.Logger,
) *TransactionService {
	linkBaseURL = strings.TrimRight(strings.TrimSpace(linkBaseURL), "/")
	if linkBaseURL == "" {
		linkBaseURL = defaultLinkBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &TransactionService{
		uow:          uow,
		shops:        shops,
		transactions: transactions,
		merchants:    merchants,
		events:       events,
		linkBaseURL:  linkBaseURL,
		logger:       log,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Create checks the shop and inserts a Pending transaction in one database transaction.
func (s *TransactionService) Create(ctx context.Context, claims domain.Claims, input TransactionInput) (domain.Transaction, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transaction.create")
	defer span.End()

	serviceID, ok := canonicalServiceID(input.ServiceID)
	if !ok {
		return domain.Transaction{}, ErrShopNotFound
	}
	span.SetAttributes(attribute.String("shop.service_id", serviceID))

	var (
		created    domain.Transaction
		merchantID int64
	)
	err := s.uow.WithinTx(ctx, func(ctx context.Context, scope port.TxScope) error {
		shop, err := s.checkShop(ctx, claims, scope.Shops(), serviceID)
		if err != nil {
			return err
		}
		merchantID = shop.MerchantID

		created, err = scope.Transactions().Create(ctx, newTransaction(serviceID, input, nil))
		if err != nil {
			return fmt.Errorf("insert transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Transaction{}, err
	}

	s.logger.Info("transaction created",
		zap.Int64("transaction_id", created.ID),
		zap.String("service_id", serviceID),
		zap.String("customer_email", appLogger.MaskEmail(input.Customer.Email)),
		zap.String("customer_phone", appLogger.MaskPhone(input.Customer.Phone)),
	)
	s.publishCreated(ctx, created, merchantID)
	return created, nil
}

// GenerateLink runs the same shop checks as Create, then stores a transaction addressed by
// a freshly minted payment link id. The checks and the insert are not atomic.
func (s *TransactionService) GenerateLink(ctx context.Context, claims domain.Claims, input TransactionInput) (PaymentLink, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "transaction.generate_link")
	defer span.End()

	serviceID, ok := canonicalServiceID(input.ServiceID)
	if !ok {
		return PaymentLink{}, ErrShopNotFound
	}

	shop, err := s.checkShop(ctx, claims, s.shops, serviceID)
	if err != nil {
		return PaymentLink{}, err
	}

	linkID := uuid.NewString()
	created, err := s.transactions.Create(ctx, newTransaction(serviceID, input, &linkID))
	if err != nil {
		return PaymentLink{}, fmt.Errorf("insert payment link transaction: %w", err)
	}

	s.logger.Info("payment link generated",
		zap.Int64("transaction_id", created.ID),
		zap.String("payment_link_id", linkID),
	)
	s.publishCreated(ctx, created, shop.MerchantID)

	return PaymentLink{
		URL:           s.linkBaseURL + "/" + linkID,
		PaymentLinkID: linkID,
		TransactionID: created.ID,
	}, nil
}

// checkShop reports NotFound, then inactive, then foreign ownership, in that order.
func (s *TransactionService) checkShop(ctx context.Context, claims domain.Claims, shops port.ShopRepository, serviceID string) (*domain.Shop, error) {
	shop, err := shops.GetByServiceID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrShopNotFound
		}
		return nil, fmt.Errorf("lookup shop: %w", err)
	}
	if !shop.Active {
		return nil, ErrShopInactive
	}

	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return nil, ErrShopForbidden
		}
		return nil, err
	}
	if shop.MerchantID != merchantID {
		return nil, ErrShopForbidden
	}
	return shop, nil
}

// GetByPaymentLink returns the transaction behind a payment link. No authentication applies.
func (s *TransactionService) GetByPaymentLink(ctx context.Context, paymentLinkID string) (*domain.Transaction, error) {
	linkID, ok := canonicalUUID(paymentLinkID)
	if !ok {
		return nil, ErrPaymentLinkNotFound
	}

	tx, err := s.transactions.GetByPaymentLink(ctx, linkID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentLinkNotFound
		}
		return nil, fmt.Errorf("lookup payment link: %w", err)
	}
	return tx, nil
}

// UpdateStatus sets the status of a transaction owned by the principal's merchant.
func (s *TransactionService) UpdateStatus(ctx context.Context, claims domain.Claims, transactionID int64, rawStatus string) (domain.TransactionStatus, error) {
	status, err := domain.ParseTransactionStatus(rawStatus)
	if err != nil {
		return "", err
	}

	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		if errors.Is(err, ErrForbidden) {
			return "", ErrTransactionNotFound
		}
		return "", err
	}

	if err := s.transactions.UpdateStatusForMerchant(ctx, merchantID, transactionID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrTransactionNotFound
		}
		return "", fmt.Errorf("update transaction status: %w", err)
	}

	id := transactionID
	s.publishStatusChanged(ctx, domain.TransactionStatusChangedEvent{
		TransactionID: &id,
		Status:        status,
		Via:           "merchant",
		ChangedAt:     s.now(),
	})
	return status, nil
}

// UpdateStatusByPaymentLink sets the status of the transaction behind a payment link.
// Possession of the link is the only authorization.
func (s *TransactionService) UpdateStatusByPaymentLink(ctx context.Context, paymentLinkID, rawStatus string) (domain.TransactionStatus, error) {
	status, err := domain.ParseTransactionStatus(rawStatus)
	if err != nil {
		return "", err
	}

	linkID, ok := canonicalUUID(paymentLinkID)
	if !ok {
		return "", ErrPaymentLinkNotFound
	}

	if err := s.transactions.UpdateStatusByPaymentLink(ctx, linkID, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrPaymentLinkNotFound
		}
		return "", fmt.Errorf("update payment link status: %w", err)
	}

	s.publishStatusChanged(ctx, domain.TransactionStatusChangedEvent{
		PaymentLinkID: &linkID,
		Status:        status,
		Via:           "payment_link",
		ChangedAt:     s.now(),
	})
	return status, nil
}

// List pages through every transaction across the merchant's shops.
func (s *TransactionService) List(ctx context.Context, claims domain.Claims, query TransactionQuery) (TransactionPage, error) {
	merchantID, err := s.merchants.ResolveMerchantID(ctx, claims)
	if err != nil {
		return TransactionPage{}, err
	}

	page := query.Page
	if page < 1 {
		page = 1
	}
	limit := query.Limit
	if limit < 1 {
		limit = defaultTransactionPageSize
	}
	if limit > maxTransactionPageSize {
		limit = maxTransactionPageSize
	}

	filter := domain.TransactionFilter{
		MerchantID: merchantID,
		Status:     strings.TrimSpace(query.Status),
		Currency:   strings.ToUpper(strings.TrimSpace(query.Currency)),
		Search:     strings.TrimSpace(query.Search),
		SortBy:     query.SortBy,
		SortAsc:    strings.EqualFold(query.SortOrder, "asc"),
		Page:       domain.Page{Number: page, Size: limit},
	}

	items, total, err := s.transactions.ListByMerchant(ctx, filter)
	if err != nil {
		return TransactionPage{}, fmt.Errorf("list transactions: %w", err)
	}
	if items == nil {
		items = []domain.Transaction{}
	}

	totalPages := filter.Page.TotalPages(total)
	return TransactionPage{
		Items:      items,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}, nil
}

func (s *TransactionService) publishCreated(ctx context.Context, tx domain.Transaction, merchantID int64) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionCreated(ctx, domain.TransactionCreatedEvent{
		TransactionID: tx.ID,
		ServiceID:     tx.ServiceID,
		MerchantID:    merchantID,
		Amount:        tx.Amount,
		Currency:      tx.Currency,
		PaymentLinkID: tx.PaymentLinkID,
		CreatedAt:     tx.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish transaction created event", zap.Error(err))
	}
}

func (s *TransactionService) publishStatusChanged(ctx context.Context, event domain.TransactionStatusChangedEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionStatusChanged(ctx, event); err != nil {
		s.logger.Warn("publish transaction status event", zap.Error(err))
	}
}

func newTransaction(serviceID string, input TransactionInput, linkID *string) domain.Transaction {
	return domain.Transaction{
		ServiceID:     serviceID,
		Amount:        input.Amount,
		Currency:      strings.ToUpper(strings.TrimSpace(input.Currency)),
		Title:         input.Title,
		Customer:      input.Customer,
		Status:        domain.StatusPending,
		PaymentLinkID: linkID,
	}
}

func canonicalServiceID(raw string) (string, bool) {
	return canonicalUUID(domain.NormalizeServiceID(raw))
}

func canonicalUUID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}
