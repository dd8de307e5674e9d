package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/core/port"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/security"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

type merchantRepoStub struct {
	merchants map[int64]domain.Merchant
	err       error
}

func (r *merchantRepoStub) GetByEmail(_ context.Context, email string) (*domain.Merchant, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, m := range r.merchants {
		if m.Email == domain.NormalizeEmail(email) {
			copy := m
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *merchantRepoStub) GetByID(_ context.Context, id int64) (*domain.Merchant, error) {
	if r.err != nil {
		return nil, r.err
	}
	if m, ok := r.merchants[id]; ok {
		return &m, nil
	}
	return nil, repository.ErrNotFound
}

func (r *merchantRepoStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

type userRepoStub struct {
	users      map[int64]domain.StaffUser
	err        error
	lastList   domain.StaffFilter
	lastUpdate *domain.StaffProfileUpdate
	updateErr  error
	deleteErr  error
}

func (r *userRepoStub) GetByEmail(_ context.Context, email string) (*domain.StaffUser, error) {
	if r.err != nil {
		return nil, r.err
	}
	for _, u := range r.users {
		if u.Email == domain.NormalizeEmail(email) {
			copy := u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepoStub) GetByID(_ context.Context, id int64) (*domain.StaffUser, error) {
	if r.err != nil {
		return nil, r.err
	}
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, repository.ErrNotFound
}

func (r *userRepoStub) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *userRepoStub) ListByMerchant(_ context.Context, filter domain.StaffFilter) ([]domain.StaffUser, int, error) {
	r.lastList = filter
	if r.err != nil {
		return nil, 0, r.err
	}
	var out []domain.StaffUser
	for _, u := range r.users {
		if u.MerchantID == filter.MerchantID {
			out = append(out, u)
		}
	}
	return out, len(out), nil
}

func (r *userRepoStub) Update(_ context.Context, merchantID, userID int64, update domain.StaffProfileUpdate) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	u, ok := r.users[userID]
	if !ok || u.MerchantID != merchantID {
		return repository.ErrNotFound
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	if update.Email != nil {
		u.Email = *update.Email
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.Roles != nil {
		u.Roles = update.Roles
	}
	r.users[userID] = u
	r.lastUpdate = &update
	return nil
}

func (r *userRepoStub) Delete(_ context.Context, merchantID, userID int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	u, ok := r.users[userID]
	if !ok || u.MerchantID != merchantID {
		return repository.ErrNotFound
	}
	delete(r.users, userID)
	return nil
}

type roleRepoStub struct {
	assigned map[int64][]domain.Role
	err      error
	calls    int
}

func (r *roleRepoStub) ListByUser(_ context.Context, userID int64) ([]domain.Role, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.assigned[userID], nil
}

func (r *roleRepoStub) ReplaceForUser(_ context.Context, userID int64, roles []domain.Role) error {
	if r.err != nil {
		return r.err
	}
	if r.assigned == nil {
		r.assigned = make(map[int64][]domain.Role)
	}
	r.assigned[userID] = roles
	return nil
}

// plainHasher stands in for Argon2 so tests stay fast.
type plainHasher struct {
	hashErr error
}

func (h plainHasher) Hash(_ context.Context, password string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + password, nil
}

func (h plainHasher) Verify(_ context.Context, password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type claimStoreStub struct {
	mu       sync.Mutex
	held     map[string]time.Duration
	released []string
	err      error
}

func (c *claimStoreStub) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if c.held == nil {
		c.held = make(map[string]time.Duration)
	}
	if _, ok := c.held[key]; ok {
		return false, nil
	}
	c.held[key] = ttl
	return true, nil
}

func (c *claimStoreStub) Release(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.held, key)
	c.released = append(c.released, key)
	return nil
}

type publisherStub struct {
	published []domain.ProvisioningRequest
	err       error
}

func (p *publisherStub) Publish(_ context.Context, req domain.ProvisioningRequest) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, req)
	return nil
}

type accountStoreStub struct {
	merchants []domain.Merchant
	shops     []domain.DefaultShop
	staff     []domain.StaffUser
	roles     [][]domain.Role
	err       error
}

func (a *accountStoreStub) CreateMerchantWithShop(_ context.Context, m domain.Merchant, shop domain.DefaultShop) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.merchants = append(a.merchants, m)
	a.shops = append(a.shops, shop)
	return int64(len(a.merchants)), nil
}

func (a *accountStoreStub) CreateStaffWithRoles(_ context.Context, u domain.StaffUser, roles []domain.Role) (int64, error) {
	if a.err != nil {
		return 0, a.err
	}
	a.staff = append(a.staff, u)
	a.roles = append(a.roles, roles)
	return int64(100 + len(a.staff)), nil
}

type eventRecorder struct {
	created     []domain.TransactionCreatedEvent
	changed     []domain.TransactionStatusChangedEvent
	provisioned []domain.AccountProvisionedEvent
	failed      []domain.ProvisioningFailedEvent
}

func (e *eventRecorder) PublishTransactionCreated(_ context.Context, ev domain.TransactionCreatedEvent) error {
	e.created = append(e.created, ev)
	return nil
}

func (e *eventRecorder) PublishTransactionStatusChanged(_ context.Context, ev domain.TransactionStatusChangedEvent) error {
	e.changed = append(e.changed, ev)
	return nil
}

func (e *eventRecorder) PublishAccountProvisioned(_ context.Context, ev domain.AccountProvisionedEvent) error {
	e.provisioned = append(e.provisioned, ev)
	return nil
}

func (e *eventRecorder) PublishProvisioningFailed(_ context.Context, ev domain.ProvisioningFailedEvent) error {
	e.failed = append(e.failed, ev)
	return nil
}

type shopRepoStub struct {
	shops map[string]domain.Shop
}

func (r *shopRepoStub) GetByServiceID(_ context.Context, serviceID string) (*domain.Shop, error) {
	if s, ok := r.shops[serviceID]; ok {
		return &s, nil
	}
	return nil, repository.ErrNotFound
}

type transactionRepoStub struct {
	rows       []domain.Transaction
	owners     map[string]int64
	lastFilter domain.TransactionFilter
}

func (r *transactionRepoStub) Create(_ context.Context, tx domain.Transaction) (domain.Transaction, error) {
	tx.ID = int64(len(r.rows) + 1)
	tx.CreatedAt = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	r.rows = append(r.rows, tx)
	return tx, nil
}

func (r *transactionRepoStub) GetByPaymentLink(_ context.Context, linkID string) (*domain.Transaction, error) {
	for _, tx := range r.rows {
		if tx.PaymentLinkID != nil && *tx.PaymentLinkID == linkID {
			copy := tx
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *transactionRepoStub) UpdateStatusForMerchant(_ context.Context, merchantID, id int64, status domain.TransactionStatus) error {
	for i, tx := range r.rows {
		if tx.ID == id && r.owners[tx.ServiceID] == merchantID {
			r.rows[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *transactionRepoStub) UpdateStatusByPaymentLink(_ context.Context, linkID string, status domain.TransactionStatus) error {
	for i, tx := range r.rows {
		if tx.PaymentLinkID != nil && *tx.PaymentLinkID == linkID {
			r.rows[i].Status = status
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *transactionRepoStub) ListByMerchant(_ context.Context, filter domain.TransactionFilter) ([]domain.Transaction, int, error) {
	r.lastFilter = filter
	var out []domain.Transaction
	for _, tx := range r.rows {
		if r.owners[tx.ServiceID] == filter.MerchantID {
			out = append(out, tx)
		}
	}
	return out, len(out), nil
}

// stagedUnitOfWork buffers inserts made through the scope and applies them to the
// backing repository only when fn succeeds.
type stagedUnitOfWork struct {
	shops     *shopRepoStub
	base      *transactionRepoStub
	commits   int
	rollbacks int
}

type stagedScope struct {
	shops *shopRepoStub
	tx    *transactionRepoStub
}

func (s stagedScope) Shops() port.ShopRepository               { return s.shops }
func (s stagedScope) Transactions() port.TransactionRepository { return s.tx }

func (u *stagedUnitOfWork) WithinTx(ctx context.Context, fn func(context.Context, port.TxScope) error) error {
	staged := &transactionRepoStub{
		rows:   append([]domain.Transaction(nil), u.base.rows...),
		owners: u.base.owners,
	}
	if err := fn(ctx, stagedScope{shops: u.shops, tx: staged}); err != nil {
		u.rollbacks++
		return err
	}
	u.base.rows = staged.rows
	u.commits++
	return nil
}

func newTestTokenIssuer(t *testing.T) *security.TokenIssuer {
	t.Helper()
	issuer, err := security.NewTokenIssuer(security.TokenIssuerConfig{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		Issuer:        "payment-gateway",
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	return issuer
}

func merchantClaims(id int64) domain.Claims {
	return domain.Claims{ID: id, Email: "owner@example.com", Type: domain.PrincipalMerchant, Roles: domain.AllRoles()}
}

func staffClaims(id, merchantID int64, roles ...domain.Role) domain.Claims {
	return domain.Claims{ID: id, Email: "staff@example.com", Type: domain.PrincipalStaff, Roles: roles, MerchantID: &merchantID}
}

func containsString(values []string, want string) bool {
	for _, v := range values {
		if strings.EqualFold(v, want) {
			return true
		}
	}
	return false
}
