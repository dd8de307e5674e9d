package logger

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide zap.Logger. Production gets JSON output, everything else a coloured console.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if !strings.EqualFold(env, "production") {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.InitialFields = map[string]interface{}{"env": env}

		lg, err = cfg.Build()
	})

	return lg, err
}

// RequestIDKey is used to store a request identifier on the context.
type RequestIDKey struct{}

// TraceIDKey is used to store the correlation id propagated across HTTP and the broker.
type TraceIDKey struct{}

// WithContext returns base enriched with the correlation identifiers carried by ctx.
func WithContext(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = lg
	}
	if base == nil {
		base = zap.NewNop()
	}
	if ctx == nil {
		return base
	}

	fields := make([]zap.Field, 0, 2)
	if val, ok := ctx.Value(RequestIDKey{}).(string); ok && val != "" {
		fields = append(fields, zap.String("request_id", val))
	}
	if val, ok := ctx.Value(TraceIDKey{}).(string); ok && val != "" {
		fields = append(fields, zap.String("trace_id", val))
	}
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}

var (
	emailRegex = regexp.MustCompile(`^([^@]{1,3})[^@]*(@.+)$`)
	phoneRegex = regexp.MustCompile(`^(\+?\d{1,3})(\d{2,})(\d{3})$`)
)

// MaskEmail keeps the first three characters and the domain.
// Example: jan.kowalski@example.com -> jan***@example.com
func MaskEmail(email string) string {
	if email == "" {
		return ""
	}

	if matches := emailRegex.FindStringSubmatch(email); len(matches) == 3 {
		return matches[1] + "***" + matches[2]
	}

	if _, domain, ok := strings.Cut(email, "@"); ok {
		return "***@" + domain
	}
	return "***"
}

// MaskPhone keeps the country prefix and the last three digits of customer phone numbers.
func MaskPhone(phone string) string {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if phone == "" {
		return ""
	}

	if matches := phoneRegex.FindStringSubmatch(phone); len(matches) == 4 {
		return matches[1] + "***" + matches[3]
	}
	if len(phone) > 3 {
		return "***" + phone[len(phone)-3:]
	}
	return "***"
}

// MaskIP hides the host part of an address: the last two IPv4 octets or the last four IPv6 groups.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if strings.Contains(ip, ".") {
		if parts := strings.Split(ip, "."); len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	}

	if strings.Contains(ip, ":") {
		if parts := strings.Split(ip, ":"); len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}

	return "***"
}
