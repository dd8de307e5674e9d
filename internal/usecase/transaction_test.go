package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

const (
	ownShop      = "0b0e1b8a-4a3c-4d2e-9f7a-1c2d3e4f5a6b"
	inactiveShop = "1b0e1b8a-4a3c-4d2e-9f7a-1c2d3e4f5a6b"
	foreignShop  = "2b0e1b8a-4a3c-4d2e-9f7a-1c2d3e4f5a6b"
)

type transactionFixture struct {
	svc    *TransactionService
	uow    *stagedUnitOfWork
	repo   *transactionRepoStub
	events *eventRecorder
}

func newTransactionFixture(t *testing.T) transactionFixture {
	t.Helper()
	shops := &shopRepoStub{shops: map[string]domain.Shop{
		ownShop:      {ID: 1, ServiceID: ownShop, MerchantID: 7, Active: true},
		inactiveShop: {ID: 2, ServiceID: inactiveShop, MerchantID: 7, Active: false},
		foreignShop:  {ID: 3, ServiceID: foreignShop, MerchantID: 8, Active: true},
	}}
	repo := &transactionRepoStub{owners: map[string]int64{ownShop: 7, inactiveShop: 7, foreignShop: 8}}
	uow := &stagedUnitOfWork{shops: shops, base: repo}
	users := &userRepoStub{users: map[int64]domain.StaffUser{42: {ID: 42, MerchantID: 7}}}
	events := &eventRecorder{}

	svc := NewTransactionService(uow, shops, repo, NewAuthorizationService(users, &roleRepoStub{}), events, "https://pay.example.com/pay/", zaptest.NewLogger(t))
	return transactionFixture{svc: svc, uow: uow, repo: repo, events: events}
}

func sampleInput(serviceID string) TransactionInput {
	return TransactionInput{
		ServiceID: serviceID,
		Amount:    10.5,
		Currency:  "pln",
		Title:     "Order",
		Customer:  domain.Customer{FirstName: "A", LastName: "B", Email: "c@example.com", Phone: "600123456"},
	}
}

func TestTransactionService_CreateCommitsPendingTransaction(t *testing.T) {
	f := newTransactionFixture(t)

	raw := strings.ToUpper(strings.ReplaceAll(ownShop, "-", ""))
	tx, err := f.svc.Create(context.Background(), merchantClaims(7), sampleInput(raw))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if tx.Status != domain.StatusPending || tx.ServiceID != ownShop || tx.Currency != "PLN" {
		t.Fatalf("unexpected transaction: %+v", tx)
	}
	if f.uow.commits != 1 || len(f.repo.rows) != 1 {
		t.Fatalf("expected one committed row, commits=%d rows=%d", f.uow.commits, len(f.repo.rows))
	}
	if len(f.events.created) != 1 || f.events.created[0].MerchantID != 7 {
		t.Fatalf("expected a created event, got %+v", f.events.created)
	}
}

func TestTransactionService_CreateRejectsWithoutInsert(t *testing.T) {
	cases := []struct {
		name      string
		serviceID string
		claims    domain.Claims
		want      error
	}{
		{"unknown shop", "3b0e1b8a-4a3c-4d2e-9f7a-1c2d3e4f5a6b", merchantClaims(7), ErrShopNotFound},
		{"malformed service id", "not-a-uuid", merchantClaims(7), ErrShopNotFound},
		{"inactive shop", inactiveShop, merchantClaims(7), ErrShopInactive},
		{"foreign shop", foreignShop, merchantClaims(7), ErrShopForbidden},
		{"deleted staff", ownShop, staffClaims(99, 7), ErrShopForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newTransactionFixture(t)

			if _, err := f.svc.Create(context.Background(), tc.claims, sampleInput(tc.serviceID)); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(f.repo.rows) != 0 || f.uow.commits != 0 {
				t.Fatalf("expected no insert, rows=%d commits=%d", len(f.repo.rows), f.uow.commits)
			}
		})
	}
}

func TestTransactionService_StaffCreatesForTheirMerchant(t *testing.T) {
	f := newTransactionFixture(t)

	if _, err := f.svc.Create(context.Background(), staffClaims(42, 7, domain.RoleFinancial), sampleInput(ownShop)); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestTransactionService_GenerateLinkThenFetchAndSettle(t *testing.T) {
	f := newTransactionFixture(t)

	link, err := f.svc.GenerateLink(context.Background(), merchantClaims(7), sampleInput(ownShop))
	if err != nil {
		t.Fatalf("GenerateLink returned error: %v", err)
	}
	if link.URL != "https://pay.example.com/pay/"+link.PaymentLinkID {
		t.Fatalf("unexpected link url %q", link.URL)
	}

	tx, err := f.svc.GetByPaymentLink(context.Background(), link.PaymentLinkID)
	if err != nil {
		t.Fatalf("GetByPaymentLink returned error: %v", err)
	}
	if tx.ID != link.TransactionID || tx.Status != domain.StatusPending {
		t.Fatalf("unexpected transaction: %+v", tx)
	}

	if _, err := f.svc.UpdateStatusByPaymentLink(context.Background(), link.PaymentLinkID, "success"); err != nil {
		t.Fatalf("UpdateStatusByPaymentLink returned error: %v", err)
	}
	if _, err := f.svc.UpdateStatusByPaymentLink(context.Background(), link.PaymentLinkID, "Success"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus for wrong case, got %v", err)
	}

	tx, _ = f.svc.GetByPaymentLink(context.Background(), link.PaymentLinkID)
	if tx.Status != domain.StatusSuccess {
		t.Fatalf("expected status success, got %s", tx.Status)
	}
	if len(f.events.changed) != 1 || f.events.changed[0].Via != "payment_link" {
		t.Fatalf("unexpected status events: %+v", f.events.changed)
	}
}

func TestTransactionService_GenerateLinkChecksShop(t *testing.T) {
	f := newTransactionFixture(t)

	if _, err := f.svc.GenerateLink(context.Background(), merchantClaims(7), sampleInput(inactiveShop)); !errors.Is(err, ErrShopInactive) {
		t.Fatalf("expected ErrShopInactive, got %v", err)
	}
	if len(f.repo.rows) != 0 {
		t.Fatalf("expected no insert")
	}
}

func TestTransactionService_PaymentLinkNotFound(t *testing.T) {
	f := newTransactionFixture(t)

	for _, id := range []string{"6f1c2b8e-0d55-4a43-9e1c-0b7f3e2a9c11", "nope"} {
		if _, err := f.svc.GetByPaymentLink(context.Background(), id); !errors.Is(err, ErrPaymentLinkNotFound) {
			t.Fatalf("expected ErrPaymentLinkNotFound for %q, got %v", id, err)
		}
		if _, err := f.svc.UpdateStatusByPaymentLink(context.Background(), id, "failed"); !errors.Is(err, ErrPaymentLinkNotFound) {
			t.Fatalf("expected ErrPaymentLinkNotFound for %q, got %v", id, err)
		}
	}
}

func TestTransactionService_UpdateStatusAnyToAny(t *testing.T) {
	f := newTransactionFixture(t)
	tx, err := f.svc.Create(context.Background(), merchantClaims(7), sampleInput(ownShop))
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	for _, status := range []string{"success", "Pending", "Cancelled", "processing", "failed", "success"} {
		if _, err := f.svc.UpdateStatus(context.Background(), merchantClaims(7), tx.ID, status); err != nil {
			t.Fatalf("UpdateStatus to %s returned error: %v", status, err)
		}
	}

	if _, err := f.svc.UpdateStatus(context.Background(), merchantClaims(8), tx.ID, "failed"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound for foreign merchant, got %v", err)
	}
	if _, err := f.svc.UpdateStatus(context.Background(), merchantClaims(7), tx.ID, "done"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestTransactionService_ListAppliesDefaultsAndBounds(t *testing.T) {
	f := newTransactionFixture(t)
	for i := 0; i < 3; i++ {
		if _, err := f.svc.Create(context.Background(), merchantClaims(7), sampleInput(ownShop)); err != nil {
			t.Fatalf("Create returned error: %v", err)
		}
	}

	page, err := f.svc.List(context.Background(), merchantClaims(7), TransactionQuery{Limit: 500, SortOrder: "ASC", Currency: "pln"})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if page.Page != 1 || page.Limit != 100 || page.Total != 3 || page.TotalPages != 1 || page.HasNext || page.HasPrev {
		t.Fatalf("unexpected page: %+v", page)
	}
	if got := f.repo.lastFilter; !got.SortAsc || got.Currency != "PLN" || got.MerchantID != 7 {
		t.Fatalf("unexpected filter: %+v", got)
	}

	empty, err := f.svc.List(context.Background(), merchantClaims(8), TransactionQuery{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if empty.Items == nil || empty.Limit != 25 {
		t.Fatalf("expected empty non-nil page with default limit, got %+v", empty)
	}
}
