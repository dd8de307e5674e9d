package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

const (
	ownerToken     = "owner-token"
	financeToken   = "finance-token"
	technicalToken = "technical-token"

	ownShopID     = "3f6c2a1e-8d4b-4c1a-9e2f-1a2b3c4d5e6f"
	foreignShopID = "7a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c4d"
	closedShopID  = "0b9c8d7e-6f5a-4b3c-2d1e-0f9a8b7c6d5e"
)

var (
	ownerClaims     = domain.Claims{ID: 1, Email: "owner@shop.pl", Type: domain.PrincipalMerchant}
	financeClaims   = domain.Claims{ID: 11, Email: "finance@shop.pl", Type: domain.PrincipalStaff}
	technicalClaims = domain.Claims{ID: 12, Email: "tech@shop.pl", Type: domain.PrincipalStaff}
)

// principalDirectory stands in for both token verification and role resolution.
type principalDirectory struct {
	tokens   map[string]domain.Claims
	roles    map[int64][]domain.Role
	merchant map[int64]int64
}

func newPrincipalDirectory() *principalDirectory {
	return &principalDirectory{
		tokens: map[string]domain.Claims{
			ownerToken:     ownerClaims,
			financeToken:   financeClaims,
			technicalToken: technicalClaims,
		},
		roles: map[int64][]domain.Role{
			financeClaims.ID:   {domain.RoleFinancial},
			technicalClaims.ID: {domain.RoleTechnical},
		},
		merchant: map[int64]int64{financeClaims.ID: 1, technicalClaims.ID: 1},
	}
}

func (d *principalDirectory) Authenticate(_ context.Context, token string) (domain.Claims, error) {
	claims, ok := d.tokens[token]
	if !ok {
		return domain.Claims{}, usecase.ErrInvalidAccessToken
	}
	return claims, nil
}

func (d *principalDirectory) ResolveRoles(_ context.Context, claims domain.Claims) ([]domain.Role, error) {
	if claims.IsMerchant() {
		return domain.AllRoles(), nil
	}
	return d.roles[claims.ID], nil
}

func (d *principalDirectory) Authorize(ctx context.Context, claims domain.Claims, required ...domain.Role) ([]domain.Role, error) {
	roles, _ := d.ResolveRoles(ctx, claims)
	if claims.IsMerchant() || domain.IntersectsRoles(roles, required) {
		return roles, nil
	}
	return roles, usecase.ErrForbidden
}

func (d *principalDirectory) ResolveMerchantID(_ context.Context, claims domain.Claims) (int64, error) {
	if claims.IsMerchant() {
		return claims.ID, nil
	}
	id, ok := d.merchant[claims.ID]
	if !ok {
		return 0, usecase.ErrForbidden
	}
	return id, nil
}

// memoryTransactions keeps transactions in memory and applies the same shop checks the
// real service does.
type memoryTransactions struct {
	mu     sync.Mutex
	dir    *principalDirectory
	nextID int64
	byID   map[int64]*domain.Transaction
	byLink map[string]*domain.Transaction
	err    error
}

func newMemoryTransactions(dir *principalDirectory) *memoryTransactions {
	return &memoryTransactions{
		dir:    dir,
		nextID: 100,
		byID:   make(map[int64]*domain.Transaction),
		byLink: make(map[string]*domain.Transaction),
	}
}

func (m *memoryTransactions) checkShop(ctx context.Context, claims domain.Claims, serviceID string) error {
	switch serviceID {
	case ownShopID:
	case closedShopID:
		return usecase.ErrShopInactive
	case foreignShopID:
		return usecase.ErrShopForbidden
	default:
		return usecase.ErrShopNotFound
	}
	_, err := m.dir.ResolveMerchantID(ctx, claims)
	return err
}

func (m *memoryTransactions) insert(input usecase.TransactionInput, linkID *string) domain.Transaction {
	m.nextID++
	tx := &domain.Transaction{
		ID:            m.nextID,
		ServiceID:     input.ServiceID,
		Amount:        input.Amount,
		Currency:      input.Currency,
		Title:         input.Title,
		Customer:      input.Customer,
		Status:        domain.StatusPending,
		PaymentLinkID: linkID,
		CreatedAt:     time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC),
	}
	m.byID[tx.ID] = tx
	if linkID != nil {
		m.byLink[*linkID] = tx
	}
	return *tx
}

func (m *memoryTransactions) Create(ctx context.Context, claims domain.Claims, input usecase.TransactionInput) (domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return domain.Transaction{}, m.err
	}
	if err := m.checkShop(ctx, claims, input.ServiceID); err != nil {
		return domain.Transaction{}, err
	}
	return m.insert(input, nil), nil
}

func (m *memoryTransactions) GenerateLink(ctx context.Context, claims domain.Claims, input usecase.TransactionInput) (usecase.PaymentLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.checkShop(ctx, claims, input.ServiceID); err != nil {
		return usecase.PaymentLink{}, err
	}
	linkID := uuid.NewString()
	tx := m.insert(input, &linkID)
	return usecase.PaymentLink{
		URL:           "http://localhost:3000/pay/" + linkID,
		PaymentLinkID: linkID,
		TransactionID: tx.ID,
	}, nil
}

func (m *memoryTransactions) GetByPaymentLink(_ context.Context, linkID string) (*domain.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byLink[linkID]
	if !ok {
		return nil, usecase.ErrPaymentLinkNotFound
	}
	copied := *tx
	return &copied, nil
}

func (m *memoryTransactions) UpdateStatus(_ context.Context, _ domain.Claims, id int64, raw string) (domain.TransactionStatus, error) {
	status, err := domain.ParseTransactionStatus(raw)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byID[id]
	if !ok {
		return "", usecase.ErrTransactionNotFound
	}
	tx.Status = status
	return status, nil
}

func (m *memoryTransactions) UpdateStatusByPaymentLink(_ context.Context, linkID, raw string) (domain.TransactionStatus, error) {
	status, err := domain.ParseTransactionStatus(raw)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.byLink[linkID]
	if !ok {
		return "", usecase.ErrPaymentLinkNotFound
	}
	tx.Status = status
	return status, nil
}

func (m *memoryTransactions) List(_ context.Context, _ domain.Claims, query usecase.TransactionQuery) (usecase.TransactionPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := make([]domain.Transaction, 0, len(m.byID))
	for _, tx := range m.byID {
		items = append(items, *tx)
	}
	limit := query.Limit
	if limit < 1 {
		limit = 25
	}
	return usecase.TransactionPage{
		Items:      items,
		Page:       1,
		Limit:      limit,
		Total:      len(items),
		TotalPages: 1,
	}, nil
}

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	UseJSONFieldNames()
	r := gin.New()
	r.Use(middleware.EnrichContext())
	return r
}

func newTestTranslator(t *testing.T) *ErrorTranslator {
	t.Helper()
	return NewErrorTranslator(true, zaptest.NewLogger(t))
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return out
}
