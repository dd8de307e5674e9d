package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Marcin-Purol/Payment-Gateway/internal/core/domain"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// MerchantRegisterRequest defines the merchant self-registration payload.
type MerchantRegisterRequest struct {
	FirstName string `json:"firstName" binding:"required,max=255"`
	LastName  string `json:"lastName" binding:"required,max=255"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Password  string `json:"password" binding:"required,min=6"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RefreshRequest carries the refresh token in bearer mode.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// StaffCreateRequest schedules a staff account under the caller's merchant.
type StaffCreateRequest struct {
	FirstName string   `json:"firstName" binding:"required,max=255"`
	LastName  string   `json:"lastName" binding:"required,max=255"`
	Email     string   `json:"email" binding:"required,email,max=255"`
	Password  string   `json:"password" binding:"required,min=6"`
	Roles     []string `json:"roles" binding:"required,min=1,dive,required"`
}

// RolesUpdateRequest replaces a staff user's role set.
type RolesUpdateRequest struct {
	Roles []string `json:"roles" binding:"required,min=1,dive,required"`
}

// StaffUpdateRequest changes selected fields of a staff account. Omitted fields keep their value.
type StaffUpdateRequest struct {
	FirstName *string  `json:"firstName" binding:"omitempty,max=255"`
	LastName  *string  `json:"lastName" binding:"omitempty,max=255"`
	Email     *string  `json:"email" binding:"omitempty,email,max=255"`
	Password  *string  `json:"password" binding:"omitempty,min=6"`
	Roles     []string `json:"roles" binding:"omitempty,dive,required"`
}

// CustomerPayload holds payer contact details.
type CustomerPayload struct {
	FirstName string `json:"firstName" binding:"required,max=255"`
	LastName  string `json:"lastName" binding:"required,max=255"`
	Email     string `json:"email" binding:"required,email,max=255"`
	Phone     string `json:"phone" binding:"required,max=20"`
}

// TransactionRequest is the payload for transaction creation and payment link generation.
type TransactionRequest struct {
	ServiceID string          `json:"serviceId" binding:"required"`
	Amount    float64         `json:"amount" binding:"required,gte=0.01"`
	Currency  string          `json:"currency" binding:"required,len=3"`
	Title     string          `json:"title" binding:"required,max=255"`
	Customer  CustomerPayload `json:"customer" binding:"required"`
}

func (r TransactionRequest) input() usecase.TransactionInput {
	return usecase.TransactionInput{
		ServiceID: r.ServiceID,
		Amount:    r.Amount,
		Currency:  r.Currency,
		Title:     r.Title,
		Customer: domain.Customer{
			FirstName: r.Customer.FirstName,
			LastName:  r.Customer.LastName,
			Email:     r.Customer.Email,
			Phone:     r.Customer.Phone,
		},
	}
}

// StatusUpdateRequest sets a transaction status.
type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required"`
}

// PrincipalSummary describes the authenticated principal in login responses.
type PrincipalSummary struct {
	ID    int64    `json:"id"`
	Email string   `json:"email"`
	Type  string   `json:"type"`
	Roles []string `json:"roles"`
}

// LoginResponse is returned after a successful login. Tokens are only present in bearer mode.
type LoginResponse struct {
	Message      string           `json:"message"`
	User         PrincipalSummary `json:"user"`
	Token        string           `json:"token,omitempty"`
	RefreshToken string           `json:"refreshToken,omitempty"`
}

// RefreshResponse is returned after a successful refresh.
type RefreshResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// ProfileResponse is the self-view of the current principal.
type ProfileResponse struct {
	FirstName string   `json:"firstName"`
	LastName  string   `json:"lastName"`
	Email     string   `json:"email"`
	Roles     []string `json:"roles"`
}

// RolesResponse lists the roles effective for the current principal.
type RolesResponse struct {
	Roles []string `json:"roles"`
}

// StaffUserPayload is a staff account as listed to its merchant.
type StaffUserPayload struct {
	ID        int64     `json:"id"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"createdAt"`
}

// StaffListResponse is one page of staff users.
type StaffListResponse struct {
	Users      []StaffUserPayload `json:"users"`
	Total      int                `json:"total"`
	Page       int                `json:"page"`
	TotalPages int                `json:"totalPages"`
}

// RolesUpdatedResponse confirms a role replacement.
type RolesUpdatedResponse struct {
	Message string   `json:"message"`
	Roles   []string `json:"roles"`
}

// TransactionResponse describes a transaction.
type TransactionResponse struct {
	ID            int64           `json:"id"`
	ServiceID     string          `json:"serviceId"`
	Amount        float64         `json:"amount"`
	Currency      string          `json:"currency"`
	Title         string          `json:"title"`
	Customer      CustomerPayload `json:"customer"`
	Status        string          `json:"status"`
	PaymentLinkID *string         `json:"paymentLinkId,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// PaymentLinkResponse is returned by payment link generation.
type PaymentLinkResponse struct {
	Message       string `json:"message"`
	PaymentLink   string `json:"paymentLink"`
	TransactionID int64  `json:"transactionId"`
}

// Pagination describes the window of a listing.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// TransactionListResponse is one page of a merchant's transactions.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Pagination   Pagination            `json:"pagination"`
}

// HealthResponse reports process liveness.
type HealthResponse struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Uptime      float64   `json:"uptime"`
	Environment string    `json:"environment"`
	Version     string    `json:"version"`
}

// ReadyResponse reports dependency readiness.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

func toTransactionResponse(tx domain.Transaction) TransactionResponse {
	return TransactionResponse{
		ID:        tx.ID,
		ServiceID: tx.ServiceID,
		Amount:    tx.Amount,
		Currency:  tx.Currency,
		Title:     tx.Title,
		Customer: CustomerPayload{
			FirstName: tx.Customer.FirstName,
			LastName:  tx.Customer.LastName,
			Email:     tx.Customer.Email,
			Phone:     tx.Customer.Phone,
		},
		Status:        string(tx.Status),
		PaymentLinkID: tx.PaymentLinkID,
		CreatedAt:     tx.CreatedAt,
	}
}

func toStaffUserPayload(u domain.StaffUser) StaffUserPayload {
	return StaffUserPayload{
		ID:        u.ID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Roles:     domain.RoleNames(u.Roles),
		CreatedAt: u.CreatedAt,
	}
}
