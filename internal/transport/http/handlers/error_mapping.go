package handlers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/logger"
	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/rabbitmq"
	"github.com/Marcin-Purol/Payment-Gateway/internal/usecase"
)

// ErrorCase maps a sentinel error to an HTTP status code and response message.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

var defaultErrorCases = []ErrorCase{
	{Err: usecase.ErrInvalidCredentials, Status: http.StatusUnauthorized, Message: "Invalid email or password"},
	{Err: usecase.ErrMissingToken, Status: http.StatusUnauthorized, Message: "No token provided"},
	{Err: usecase.ErrExpiredAccessToken, Status: http.StatusUnauthorized, Message: "Token expired"},
	{Err: usecase.ErrInvalidAccessToken, Status: http.StatusUnauthorized, Message: "Invalid token"},
	{Err: usecase.ErrExpiredRefreshToken, Status: http.StatusUnauthorized, Message: "Refresh token expired"},
	{Err: usecase.ErrInvalidRefreshToken, Status: http.StatusUnauthorized, Message: "Invalid refresh token"},

	{Err: usecase.ErrShopForbidden, Status: http.StatusForbidden, Message: "Unauthorized to access this shop"},
	{Err: usecase.ErrSelfRoleChange, Status: http.StatusForbidden, Message: "Cannot change your own roles"},
	{Err: usecase.ErrForbidden, Status: http.StatusForbidden, Message: "Access denied"},

	{Err: usecase.ErrShopNotFound, Status: http.StatusNotFound, Message: "Shop not found"},
	{Err: usecase.ErrTransactionNotFound, Status: http.StatusNotFound, Message: "Transaction not found"},
	{Err: usecase.ErrPaymentLinkNotFound, Status: http.StatusNotFound, Message: "Payment link not found"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "User not found"},
	{Err: usecase.ErrPrincipalNotFound, Status: http.StatusNotFound, Message: "User not found"},

	{Err: usecase.ErrShopInactive, Status: http.StatusBadRequest, Message: "Shop is deactivated"},
	{Err: usecase.ErrInvalidStatus, Status: http.StatusBadRequest, Message: "Invalid status value"},
	{Err: usecase.ErrEmailTaken, Status: http.StatusBadRequest, Message: "Email already registered"},
	{Err: usecase.ErrNoFieldsToUpdate, Status: http.StatusBadRequest, Message: "No fields to update"},
	{Err: usecase.ErrRolesRequired, Status: http.StatusBadRequest, Message: "Roles array is required"},
	{Err: usecase.ErrUnknownRole, Status: http.StatusBadRequest, Message: "Invalid role"},
	{Err: usecase.ErrInvalidAccountInput, Status: http.StatusBadRequest, Message: "Invalid input data"},
}

// ValidationErrorResponse is returned when a request body fails validation.
type ValidationErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
	TraceID string   `json:"trace_id,omitempty"`
}

// ErrorTranslator turns usecase and infrastructure errors into HTTP responses.
type ErrorTranslator struct {
	cases      []ErrorCase
	production bool
	logger     *zap.Logger
}

// NewErrorTranslator builds a translator over the default cases. In production, messages of
// unexpected errors are never returned to the client.
func NewErrorTranslator(production bool, log *zap.Logger) *ErrorTranslator {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorTranslator{cases: defaultErrorCases, production: production, logger: log}
}

// Respond writes the response for err. Known sentinels map to their case, connectivity
// failures to 503 and everything else to 500.
func (t *ErrorTranslator) Respond(c *gin.Context, err error) {
	if err == nil {
		c.Status(http.StatusOK)
		return
	}
	log := logger.WithContext(c.Request.Context(), t.logger).With(
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
	)

	for _, cs := range t.cases {
		if errors.Is(err, cs.Err) {
			if cs.Status >= http.StatusInternalServerError {
				log.Error("request failed", zap.Error(err))
			} else {
				log.Warn("request rejected", zap.Int("status", cs.Status), zap.Error(err))
			}
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	if isUnavailable(err) {
		log.Error("dependency unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, NewErrorResponse(c, "Service temporarily unavailable"))
		return
	}

	log.Error("unhandled error", zap.Error(err))
	message := "Internal Server Error"
	if !t.production {
		message = err.Error()
	}
	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, message))
}

// BindingError writes a 400 for a body or query that failed to bind.
func (t *ErrorTranslator) BindingError(c *gin.Context, err error) {
	logger.WithContext(c.Request.Context(), t.logger).Warn("invalid request payload",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err),
	)

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "Invalid request body"))
		return
	}

	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, describeFieldError(fe))
	}
	c.JSON(http.StatusBadRequest, ValidationErrorResponse{
		Error:   "Validation failed",
		Details: details,
		TraceID: NewErrorResponse(c, "").TraceID,
	})
}

func describeFieldError(fe validator.FieldError) string {
	field := jsonFieldPath(fe.Namespace())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "len":
		return fmt.Sprintf("%s must be exactly %s characters", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

var registerTagNames sync.Once

// UseJSONFieldNames makes gin's validator report fields by their JSON names.
func UseJSONFieldNames() {
	registerTagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	})
}

// jsonFieldPath drops the struct name from a validator namespace and lowercases the first
// letter of every segment, matching the camelCase JSON keys.
func jsonFieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, rabbitmq.ErrNotConnected) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
