package usecase

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
)

func newTestAuthService(t *testing.T, merchants *merchantRepoStub, users *userRepoStub, roles *roleRepoStub) *AuthService {
	t.Helper()
	return NewAuthService(merchants, users, roles, plainHasher{}, newTestTokenIssuer(t), zaptest.NewLogger(t))
}

func TestAuthService_LoginMerchantHoldsAllRoles(t *testing.T) {
	merchants := &merchantRepoStub{merchants: map[int64]domain.Merchant{
		7: {ID: 7, Email: "m@example.com", PasswordHash: "hashed:pw123456"},
	}}
	svc := newTestAuthService(t, merchants, &userRepoStub{}, &roleRepoStub{})

	result, err := svc.Login(context.Background(), "M@Example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Claims.Type != domain.PrincipalMerchant || result.Claims.MerchantID != nil {
		t.Fatalf("unexpected merchant claims: %+v", result.Claims)
	}
	if !reflect.DeepEqual(result.Claims.Roles, domain.AllRoles()) {
		t.Fatalf("expected all roles, got %v", result.Claims.Roles)
	}
	if result.Access.Value == "" || result.Refresh.Value == "" || result.Access.Value == result.Refresh.Value {
		t.Fatalf("expected distinct access and refresh tokens")
	}

	decoded, err := svc.Authenticate(context.Background(), result.Access.Value)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if decoded.ID != 7 {
		t.Fatalf("expected principal 7, got %d", decoded.ID)
	}
}

func TestAuthService_LoginStaffResolvesStoredRoles(t *testing.T) {
	users := &userRepoStub{users: map[int64]domain.StaffUser{
		42: {ID: 42, MerchantID: 7, Email: "s@example.com", PasswordHash: "hashed:pw123456"},
	}}
	roles := &roleRepoStub{assigned: map[int64][]domain.Role{42: {domain.RoleFinancial}}}
	svc := newTestAuthService(t, &merchantRepoStub{}, users, roles)

	result, err := svc.Login(context.Background(), "s@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Claims.Type != domain.PrincipalStaff {
		t.Fatalf("expected staff claims, got %s", result.Claims.Type)
	}
	if result.Claims.MerchantID == nil || *result.Claims.MerchantID != 7 {
		t.Fatalf("expected merchantId 7, got %v", result.Claims.MerchantID)
	}
	if !reflect.DeepEqual(result.Claims.Roles, []domain.Role{domain.RoleFinancial}) {
		t.Fatalf("unexpected roles: %v", result.Claims.Roles)
	}
}

func TestAuthService_LoginRejectsBadCredentials(t *testing.T) {
	merchants := &merchantRepoStub{merchants: map[int64]domain.Merchant{
		7: {ID: 7, Email: "m@example.com", PasswordHash: "hashed:pw123456"},
	}}
	users := &userRepoStub{users: map[int64]domain.StaffUser{
		42: {ID: 42, MerchantID: 7, Email: "m@example.com", PasswordHash: "hashed:other"},
	}}
	svc := newTestAuthService(t, merchants, users, &roleRepoStub{})

	cases := []struct {
		name, email, password string
	}{
		{"wrong password", "m@example.com", "other"},
		{"unknown email", "nobody@example.com", "pw123456"},
		{"empty password", "m@example.com", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.Login(context.Background(), tc.email, tc.password); !errors.Is(err, ErrInvalidCredentials) {
				t.Fatalf("expected ErrInvalidCredentials, got %v", err)
			}
		})
	}
}

func TestAuthService_LoginPropagatesStoreFailure(t *testing.T) {
	boom := errors.New("connection refused")
	svc := newTestAuthService(t, &merchantRepoStub{err: boom}, &userRepoStub{}, &roleRepoStub{})

	if _, err := svc.Login(context.Background(), "m@example.com", "pw123456"); !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestAuthService_RefreshIssuesNewAccessToken(t *testing.T) {
	merchants := &merchantRepoStub{merchants: map[int64]domain.Merchant{
		7: {ID: 7, Email: "m@example.com", PasswordHash: "hashed:pw123456"},
	}}
	svc := newTestAuthService(t, merchants, &userRepoStub{}, &roleRepoStub{})

	login, err := svc.Login(context.Background(), "m@example.com", "pw123456")
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	claims, access, err := svc.Refresh(context.Background(), login.Refresh.Value)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if claims.ID != 7 || access.Value == "" {
		t.Fatalf("unexpected refresh result: %+v %+v", claims, access)
	}

	if _, _, err := svc.Refresh(context.Background(), login.Access.Value); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("access token accepted as refresh: %v", err)
	}
	if _, _, err := svc.Refresh(context.Background(), ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for empty token, got %v", err)
	}
}

func TestAuthService_AuthenticateClassifiesFailures(t *testing.T) {
	svc := newTestAuthService(t, &merchantRepoStub{}, &userRepoStub{}, &roleRepoStub{})

	if _, err := svc.Authenticate(context.Background(), ""); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "garbage"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestAuthService_ProfileForDeletedStaff(t *testing.T) {
	svc := newTestAuthService(t, &merchantRepoStub{}, &userRepoStub{users: map[int64]domain.StaffUser{}}, &roleRepoStub{})

	if _, err := svc.Profile(context.Background(), staffClaims(42, 7), nil); !errors.Is(err, ErrPrincipalNotFound) {
		t.Fatalf("expected ErrPrincipalNotFound, got %v", err)
	}
}
