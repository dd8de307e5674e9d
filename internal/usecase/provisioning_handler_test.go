package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/repository"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal: %v", err)
	}
	return b
}

func TestProvisioningHandler_CreatesMerchantWithDefaultShop(t *testing.T) {
	accounts := &accountStoreStub{}
	claims := &claimStoreStub{}
	events := &eventRecorder{}
	h := NewProvisioningHandler(plainHasher{}, accounts, claims, events, "", zaptest.NewLogger(t))

	key := domain.ProvisioningKey("ada@example.com")
	body := mustJSON(t, domain.ProvisioningRequest{
		Type:           domain.ProvisionMerchantRegistration,
		FirstName:      "Ada",
		LastName:       "Nowak",
		Email:          "ada@example.com",
		Password:       "pw123456",
		IdempotencyKey: key,
	})

	if err := h.Handle(context.Background(), body); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}

	if len(accounts.merchants) != 1 || accounts.merchants[0].PasswordHash != "hashed:pw123456" {
		t.Fatalf("unexpected merchants: %+v", accounts.merchants)
	}
	shop := accounts.shops[0]
	if shop.Name != "Test Shop" || shop.ServiceID == "" || shop.AccessToken == "" {
		t.Fatalf("unexpected default shop: %+v", shop)
	}
	if len(claims.released) != 1 || claims.released[0] != key {
		t.Fatalf("expected claim %q released, got %v", key, claims.released)
	}
	if len(events.provisioned) != 1 || events.provisioned[0].PrincipalID != 1 {
		t.Fatalf("expected one provisioned event, got %+v", events.provisioned)
	}
}

func TestProvisioningHandler_CreatesStaffWithRoles(t *testing.T) {
	accounts := &accountStoreStub{}
	h := NewProvisioningHandler(plainHasher{}, accounts, nil, nil, "Test Shop", zaptest.NewLogger(t))

	merchantID := int64(7)
	body := mustJSON(t, domain.ProvisioningRequest{
		Type:       domain.ProvisionStaffCreation,
		FirstName:  "Jan",
		LastName:   "Kowalski",
		Email:      "jan@example.com",
		Password:   "pw123456",
		Roles:      []string{"Finansowa"},
		MerchantID: &merchantID,
	})

	if err := h.Handle(context.Background(), body); err != nil {
		t.Fatalf("Handle returned error: %v", err)
	}
	if len(accounts.staff) != 1 || accounts.staff[0].MerchantID != 7 {
		t.Fatalf("unexpected staff: %+v", accounts.staff)
	}
	if len(accounts.roles[0]) != 1 || accounts.roles[0][0] != domain.RoleFinancial {
		t.Fatalf("unexpected roles: %v", accounts.roles[0])
	}
}

func TestProvisioningHandler_FailuresAreReportedAndReleased(t *testing.T) {
	merchantID := int64(7)
	cases := []struct {
		name     string
		body     []byte
		accounts *accountStoreStub
		hasher   plainHasher
		want     error
	}{
		{
			name:     "malformed json",
			body:     []byte("{not json"),
			accounts: &accountStoreStub{},
			want:     ErrMalformedProvisioning,
		},
		{
			name: "staff without roles",
			body: mustJSON(t, domain.ProvisioningRequest{
				Type: domain.ProvisionStaffCreation, FirstName: "J", LastName: "K",
				Email: "j@example.com", Password: "pw123456", MerchantID: &merchantID,
			}),
			accounts: &accountStoreStub{},
			want:     ErrMalformedProvisioning,
		},
		{
			name: "unknown type",
			body: mustJSON(t, domain.ProvisioningRequest{
				Type: "admin_creation", FirstName: "J", LastName: "K",
				Email: "j@example.com", Password: "pw123456",
			}),
			accounts: &accountStoreStub{},
			want:     ErrMalformedProvisioning,
		},
		{
			name: "duplicate email at commit",
			body: mustJSON(t, domain.ProvisioningRequest{
				Type: domain.ProvisionMerchantRegistration, FirstName: "J", LastName: "K",
				Email: "j@example.com", Password: "pw123456",
			}),
			accounts: &accountStoreStub{err: repository.ErrConflict},
			want:     repository.ErrConflict,
		},
		{
			name: "hash failure",
			body: mustJSON(t, domain.ProvisioningRequest{
				Type: domain.ProvisionMerchantRegistration, FirstName: "J", LastName: "K",
				Email: "j@example.com", Password: "pw123456",
			}),
			accounts: &accountStoreStub{},
			hasher:   plainHasher{hashErr: errors.New("pool closed")},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			events := &eventRecorder{}
			claims := &claimStoreStub{}
			h := NewProvisioningHandler(tc.hasher, tc.accounts, claims, events, "", zaptest.NewLogger(t))

			err := h.Handle(context.Background(), tc.body)
			if err == nil {
				t.Fatal("expected error")
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if len(tc.accounts.merchants)+len(tc.accounts.staff) != 0 {
				t.Fatalf("expected no accounts created")
			}
			if tc.name != "malformed json" {
				if len(events.failed) != 1 {
					t.Fatalf("expected a provisioning failed event, got %d", len(events.failed))
				}
				if len(claims.released) != 1 {
					t.Fatalf("expected claim released, got %v", claims.released)
				}
			}
		})
	}
}
