package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// RefreshTokenCookie is the cookie carrying the refresh token in cookie mode.
const RefreshTokenCookie = "refreshToken"

// CredentialTransport decides how issued tokens reach the client and how a refresh
// token is read back.
type CredentialTransport interface {
	// Issue delivers both tokens and decorates the login response.
	Issue(c *gin.Context, resp *LoginResponse, access, refresh usecase.IssuedToken)
	// Reissue delivers a refreshed access token.
	Reissue(c *gin.Context, resp *RefreshResponse, access usecase.IssuedToken)
	// RefreshToken extracts the refresh token presented by the client.
	RefreshToken(c *gin.Context) string
	// Clear drops any credential the transport stored client side.
	Clear(c *gin.Context)
}

// NewCredentialTransport returns the transport for mode. Unknown modes fall back to cookies.
func NewCredentialTransport(mode string, secure bool) CredentialTransport {
	if strings.EqualFold(mode, config.AuthModeBearer) {
		return BearerTransport{}
	}
	return CookieTransport{Secure: secure}
}

// CookieTransport stores tokens in httpOnly, SameSite=Strict cookies.
type CookieTransport struct {
	Secure bool
}

func (t CookieTransport) Issue(c *gin.Context, _ *LoginResponse, access, refresh usecase.IssuedToken) {
	t.set(c, middleware.AccessTokenCookie, access)
	t.set(c, RefreshTokenCookie, refresh)
}

func (t CookieTransport) Reissue(c *gin.Context, _ *RefreshResponse, access usecase.IssuedToken) {
	t.set(c, middleware.AccessTokenCookie, access)
}

func (t CookieTransport) RefreshToken(c *gin.Context) string {
	value, err := c.Cookie(RefreshTokenCookie)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

func (t CookieTransport) Clear(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			Expires:  time.Unix(0, 0),
			HttpOnly: true,
			Secure:   t.Secure,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (t CookieTransport) set(c *gin.Context, name string, token usecase.IssuedToken) {
	maxAge := int(time.Until(token.ExpiresAt).Seconds())
	if maxAge < 1 {
		maxAge = 1
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    token.Value,
		Path:     "/",
		MaxAge:   maxAge,
		Expires:  token.ExpiresAt,
		HttpOnly: true,
		Secure:   t.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// BearerTransport returns tokens in the response body. Clients send the access token as
// an Authorization bearer header and the refresh token in the refresh request body.
type BearerTransport struct{}

func (BearerTransport) Issue(_ *gin.Context, resp *LoginResponse, access, refresh usecase.IssuedToken) {
	resp.Token = access.Value
	resp.RefreshToken = refresh.Value
}

func (BearerTransport) Reissue(_ *gin.Context, resp *RefreshResponse, access usecase.IssuedToken) {
	resp.Token = access.Value
}

func (BearerTransport) RefreshToken(c *gin.Context) string {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && strings.TrimSpace(req.RefreshToken) != "" {
		return strings.TrimSpace(req.RefreshToken)
	}
	scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func (BearerTransport) Clear(*gin.Context) {}
