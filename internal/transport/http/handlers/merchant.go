package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/transport/http/middleware"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

const (
	msgRegistrationAccepted = "Rejestracja przyjęta. Konto zostanie utworzone w ciągu 1 minuty."
	msgStaffScheduled       = "User creation scheduled"
)

// Authenticator covers the credential flows behind the merchant endpoints.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (usecase.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (domain.Claims, usecase.IssuedToken, error)
	Profile(ctx context.Context, claims domain.Claims, roles []domain.Role) (usecase.Profile, error)
}

// RoleResolver resolves effective roles and the owning merchant of a principal.
type RoleResolver interface {
	ResolveRoles(ctx context.Context, claims domain.Claims) ([]domain.Role, error)
	ResolveMerchantID(ctx context.Context, claims domain.Claims) (int64, error)
}

// AccountScheduler queues accounts for deferred creation.
type AccountScheduler interface {
	RegisterMerchant(ctx context.Context, input usecase.AccountInput) error
	ScheduleStaff(ctx context.Context, merchantID int64, input usecase.AccountInput, roles []string) error
}

// StaffManager administers existing staff accounts.
type StaffManager interface {
	List(ctx context.Context, claims domain.Claims, role string, page, limit int) (usecase.StaffPage, error)
	ReplaceRoles(ctx context.Context, claims domain.Claims, userID int64, roles []string) ([]domain.Role, error)
	Update(ctx context.Context, claims domain.Claims, userID int64, input usecase.StaffUpdateInput) error
	Delete(ctx context.Context, claims domain.Claims, userID int64) error
}

// MerchantHandler exposes identity, session and staff endpoints.
type MerchantHandler struct {
	auth        Authenticator
	roles       RoleResolver
	accounts    AccountScheduler
	staff       StaffManager
	credentials CredentialTransport
	errors      *ErrorTranslator
}

// NewMerchantHandler constructs MerchantHandler.
func NewMerchantHandler(
	auth Authenticator,
	roles RoleResolver,
	accounts AccountScheduler,
	staff StaffManager,
	credentials CredentialTransport,
	errs *ErrorTranslator,
) *MerchantHandler {
	if credentials == nil {
		credentials = CookieTransport{}
	}
	if errs == nil {
		errs = NewErrorTranslator(true, nil)
	}
	return &MerchantHandler{
		auth:        auth,
		roles:       roles,
		accounts:    accounts,
		staff:       staff,
		credentials: credentials,
		errors:      errs,
	}
}

// RegisterRoutes binds merchant routes. session authenticates the request; representative
// additionally requires the Reprezentant role.
func (h *MerchantHandler) RegisterRoutes(r *gin.RouterGroup, session, representative gin.HandlerFunc) {
	r.POST("", h.register)
	r.POST("/login", h.login)
	r.POST("/refresh", h.refresh)
	r.POST("/logout", h.logout)

	r.GET("/me", session, h.me)
	r.GET("/roles", session, h.listRoles)

	users := r.Group("/users", session, representative)
	users.POST("", h.createStaff)
	users.GET("", h.listStaff)
	users.PATCH("/:id", h.updateStaff)
	users.PUT("/:id/roles", h.replaceRoles)
	users.DELETE("/:id", h.deleteStaff)
}

// Register godoc
// @Summary Register a merchant
// @Description Queues the merchant account and its default shop for creation.
// @Tags Merchant
// @Accept json
// @Produce json
// @Param request body MerchantRegisterRequest true "Registration payload"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/merchant [post]
func (h *MerchantHandler) register(c *gin.Context) {
	var req MerchantRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	err := h.accounts.RegisterMerchant(c.Request.Context(), usecase.AccountInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: msgRegistrationAccepted})
}

// Login godoc
// @Summary Log in
// @Description Authenticates a merchant or staff member and issues access and refresh tokens.
// @Tags Merchant
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/merchant/login [post]
func (h *MerchantHandler) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	result, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	resp := LoginResponse{
		Message: "Login successful",
		User: PrincipalSummary{
			ID:    result.Claims.ID,
			Email: result.Claims.Email,
			Type:  string(result.Claims.Type),
			Roles: domain.RoleNames(result.Claims.Roles),
		},
	}
	h.credentials.Issue(c, &resp, result.Access, result.Refresh)
	c.JSON(http.StatusOK, resp)
}

// Refresh godoc
// @Summary Refresh the access token
// @Description Verifies the refresh token and issues a new access token. Cookies are cleared on failure.
// @Tags Merchant
// @Produce json
// @Success 200 {object} RefreshResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/merchant/refresh [post]
func (h *MerchantHandler) refresh(c *gin.Context) {
	token := h.credentials.RefreshToken(c)
	if token == "" {
		h.credentials.Clear(c)
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Refresh token not provided"))
		return
	}

	_, access, err := h.auth.Refresh(c.Request.Context(), token)
	if err != nil {
		h.credentials.Clear(c)
		h.errors.Respond(c, err)
		return
	}

	resp := RefreshResponse{Message: "Token refreshed successfully"}
	h.credentials.Reissue(c, &resp, access)
	c.JSON(http.StatusOK, resp)
}

// Logout godoc
// @Summary Log out
// @Description Clears credential cookies. Issued tokens stay valid until they expire.
// @Tags Merchant
// @Produce json
// @Success 200 {object} MessageResponse
// @Router /api/merchant/logout [post]
func (h *MerchantHandler) logout(c *gin.Context) {
	h.credentials.Clear(c)
	c.JSON(http.StatusOK, MessageResponse{Message: "Logout successful"})
}

// Me godoc
// @Summary Current principal
// @Tags Merchant
// @Produce json
// @Success 200 {object} ProfileResponse
// @Failure 401 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/merchant/me [get]
func (h *MerchantHandler) me(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	roles, err := h.roles.ResolveRoles(c.Request.Context(), claims)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	profile, err := h.auth.Profile(c.Request.Context(), claims, roles)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		FirstName: profile.FirstName,
		LastName:  profile.LastName,
		Email:     profile.Email,
		Roles:     domain.RoleNames(profile.Roles),
	})
}

// Roles godoc
// @Summary Effective roles
// @Description Merchants hold every role. Staff roles are read from the store.
// @Tags Merchant
// @Produce json
// @Success 200 {object} RolesResponse
// @Failure 401 {object} ErrorResponse
// @Router /api/merchant/roles [get]
func (h *MerchantHandler) listRoles(c *gin.Context) {
	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, NewErrorResponse(c, "Unauthorized"))
		return
	}

	roles, err := h.roles.ResolveRoles(c.Request.Context(), claims)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, RolesResponse{Roles: domain.RoleNames(roles)})
}

// CreateStaff godoc
// @Summary Schedule a staff account
// @Tags Staff
// @Accept json
// @Produce json
// @Param request body StaffCreateRequest true "Staff payload"
// @Success 202 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/merchant/users [post]
func (h *MerchantHandler) createStaff(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req StaffCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	merchantID, err := h.roles.ResolveMerchantID(c.Request.Context(), claims)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	err = h.accounts.ScheduleStaff(c.Request.Context(), merchantID, usecase.AccountInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
	}, req.Roles)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	c.JSON(http.StatusAccepted, MessageResponse{Message: msgStaffScheduled})
}

// ListStaff godoc
// @Summary List staff accounts
// @Tags Staff
// @Produce json
// @Param role query string false "Role filter"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} StaffListResponse
// @Failure 403 {object} ErrorResponse
// @Router /api/merchant/users [get]
func (h *MerchantHandler) listStaff(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.staff.List(c.Request.Context(), claims, c.Query("role"), page, limit)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	users := make([]StaffUserPayload, 0, len(result.Users))
	for _, u := range result.Users {
		users = append(users, toStaffUserPayload(u))
	}
	c.JSON(http.StatusOK, StaffListResponse{
		Users:      users,
		Total:      result.Total,
		Page:       result.Page,
		TotalPages: result.TotalPages,
	})
}

// ReplaceRoles godoc
// @Summary Replace a staff member's roles
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body RolesUpdateRequest true "Roles"
// @Success 200 {object} RolesUpdatedResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/merchant/users/{id}/roles [put]
func (h *MerchantHandler) replaceRoles(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	userID, ok := pathID(c, "id")
	if !ok {
		h.errors.Respond(c, usecase.ErrUserNotFound)
		return
	}

	var req RolesUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	roles, err := h.staff.ReplaceRoles(c.Request.Context(), claims, userID, req.Roles)
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, RolesUpdatedResponse{
		Message: "Roles updated successfully",
		Roles:   domain.RoleNames(roles),
	})
}

// UpdateStaff godoc
// @Summary Update a staff account
// @Description Changes any of name, email, password and roles. A staff member cannot change their own roles.
// @Tags Staff
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body StaffUpdateRequest true "Fields to change"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/merchant/users/{id} [patch]
func (h *MerchantHandler) updateStaff(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	userID, ok := pathID(c, "id")
	if !ok {
		h.errors.Respond(c, usecase.ErrUserNotFound)
		return
	}

	var req StaffUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	err := h.staff.Update(c.Request.Context(), claims, userID, usecase.StaffUpdateInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Roles:     req.Roles,
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User updated successfully"})
}

// DeleteStaff godoc
// @Summary Delete a staff account
// @Tags Staff
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} MessageResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/merchant/users/{id} [delete]
func (h *MerchantHandler) deleteStaff(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	userID, ok := pathID(c, "id")
	if !ok {
		h.errors.Respond(c, usecase.ErrUserNotFound)
		return
	}

	if err := h.staff.Delete(c.Request.Context(), claims, userID); err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "User deleted successfully"})
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
