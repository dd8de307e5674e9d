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

// TransactionManager covers the transaction and payment link lifecycle.
type TransactionManager interface {
	Create(ctx context.Context, claims domain.Claims, input usecase.TransactionInput) (domain.Transaction, error)
	GenerateLink(ctx context.Context, claims domain.Claims, input usecase.TransactionInput) (usecase.PaymentLink, error)
	GetByPaymentLink(ctx context.Context, paymentLinkID string) (*domain.Transaction, error)
	UpdateStatus(ctx context.Context, claims domain.Claims, transactionID int64, status string) (domain.TransactionStatus, error)
	UpdateStatusByPaymentLink(ctx context.Context, paymentLinkID, status string) (domain.TransactionStatus, error)
	List(ctx context.Context, claims domain.Claims, query usecase.TransactionQuery) (usecase.TransactionPage, error)
}

// TransactionHandler exposes transaction endpoints.
type TransactionHandler struct {
	transactions TransactionManager
	errors       *ErrorTranslator
}

// NewTransactionHandler constructs TransactionHandler.
func NewTransactionHandler(transactions TransactionManager, errs *ErrorTranslator) *TransactionHandler {
	if errs == nil {
		errs = NewErrorTranslator(true, nil)
	}
	return &TransactionHandler{transactions: transactions, errors: errs}
}

// RegisterRoutes binds transaction routes. The payment link routes stay public: holding the
// link id is the only authorization they require.
func (h *TransactionHandler) RegisterRoutes(r *gin.RouterGroup, session, operator gin.HandlerFunc) {
	r.GET("/pay/:paymentLinkId", h.getByPaymentLink)
	r.PATCH("/pay/:paymentLinkId", h.updateStatusByPaymentLink)

	r.POST("", session, operator, h.create)
	r.POST("/generate-link", session, operator, h.generateLink)
	r.PATCH("/:id", session, operator, h.updateStatus)
	r.GET("/merchant/transactions", session, operator, h.list)
}

// Create godoc
// @Summary Create a transaction
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body TransactionRequest true "Transaction payload"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transaction [post]
func (h *TransactionHandler) create(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	tx, err := h.transactions.Create(c.Request.Context(), claims, req.input())
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, toTransactionResponse(tx))
}

// GenerateLink godoc
// @Summary Generate a payment link
// @Tags Transaction
// @Accept json
// @Produce json
// @Param request body TransactionRequest true "Transaction payload"
// @Success 201 {object} PaymentLinkResponse
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transaction/generate-link [post]
func (h *TransactionHandler) generateLink(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	var req TransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.BindingError(c, err)
		return
	}

	link, err := h.transactions.GenerateLink(c.Request.Context(), claims, req.input())
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, PaymentLinkResponse{
		Message:       "Payment link generated successfully",
		PaymentLink:   link.URL,
		TransactionID: link.TransactionID,
	})
}

// GetByPaymentLink godoc
// @Summary Resolve a payment link
// @Tags Payment
// @Produce json
// @Param paymentLinkId path string true "Payment link ID"
// @Success 200 {object} TransactionResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transaction/pay/{paymentLinkId} [get]
func (h *TransactionHandler) getByPaymentLink(c *gin.Context) {
	tx, err := h.transactions.GetByPaymentLink(c.Request.Context(), c.Param("paymentLinkId"))
	if err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, toTransactionResponse(*tx))
}

// UpdateStatusByPaymentLink godoc
// @Summary Set status through a payment link
// @Tags Payment
// @Accept json
// @Produce json
// @Param paymentLinkId path string true "Payment link ID"
// @Param request body StatusUpdateRequest true "New status"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transaction/pay/{paymentLinkId} [patch]
func (h *TransactionHandler) updateStatusByPaymentLink(c *gin.Context) {
	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.Respond(c, usecase.ErrInvalidStatus)
		return
	}

	if _, err := h.transactions.UpdateStatusByPaymentLink(c.Request.Context(), c.Param("paymentLinkId"), req.Status); err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction status updated successfully"})
}

// UpdateStatus godoc
// @Summary Set a transaction status
// @Tags Transaction
// @Accept json
// @Produce json
// @Param id path int true "Transaction ID"
// @Param request body StatusUpdateRequest true "New status"
// @Success 200 {object} MessageResponse
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /api/transaction/{id} [patch]
func (h *TransactionHandler) updateStatus(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	id, ok := pathID(c, "id")
	if !ok {
		h.errors.Respond(c, usecase.ErrTransactionNotFound)
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.errors.Respond(c, usecase.ErrInvalidStatus)
		return
	}

	if _, err := h.transactions.UpdateStatus(c.Request.Context(), claims, id, req.Status); err != nil {
		h.errors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{Message: "Transaction status updated successfully"})
}

// List godoc
// @Summary List the merchant's transactions
// @Tags Transaction
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param status query string false "Status filter"
// @Param currency query string false "Currency filter"
// @Param search query string false "Title or customer search"
// @Param sortBy query string false "Sort column"
// @Param sortOrder query string false "asc or desc"
// @Success 200 {object} TransactionListResponse
// @Router /api/transaction/merchant/transactions [get]
func (h *TransactionHandler) list(c *gin.Context) {
	claims, _ := middleware.ClaimsFrom(c)

	page, _ := strconv.Atoi(c.Query("page"))
	limit, _ := strconv.Atoi(c.Query("limit"))

	result, err := h.transactions.List(c.Request.Context(), claims, usecase.TransactionQuery{
		Page:      page,
		Limit:     limit,
		Status:    c.Query("status"),
		Currency:  c.Query("currency"),
		Search:    c.Query("search"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
	})
	if err != nil {
		h.errors.Respond(c, err)
		return
	}

	items := make([]TransactionResponse, 0, len(result.Items))
	for _, tx := range result.Items {
		items = append(items, toTransactionResponse(tx))
	}
	c.JSON(http.StatusOK, TransactionListResponse{
		Transactions: items,
		Pagination: Pagination{
			Page:       result.Page,
			Limit:      result.Limit,
			Total:      result.Total,
			TotalPages: result.TotalPages,
			HasNext:    result.HasNext,
			HasPrev:    result.HasPrev,
		},
	})
}
