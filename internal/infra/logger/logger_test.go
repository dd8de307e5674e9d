package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskEmail(t *testing.T) {
	cases := map[string]string{
		"jan.kowalski@example.com": "jan***@example.com",
		"ab@example.com":           "ab***@example.com",
		"":                         "",
		"not-an-email":             "***",
	}
	for in, want := range cases {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMaskPhone(t *testing.T) {
	if got := MaskPhone("+48 600 123 456"); got != "+486***456" {
		t.Fatalf("unexpected masked phone %q", got)
	}
	if got := MaskPhone("12"); got != "***" {
		t.Fatalf("unexpected masked short phone %q", got)
	}
}

func TestMaskIP(t *testing.T) {
	if got := MaskIP("192.168.10.20"); got != "192.168.*.*" {
		t.Fatalf("unexpected masked ipv4 %q", got)
	}
	if got := MaskIP("2001:0db8:85a3:0000:0000:8a2e:0370:7334"); got != "2001:0db8:85a3:0000:*:*:*:*" {
		t.Fatalf("unexpected masked ipv6 %q", got)
	}
}

func TestWithContext_AddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := context.WithValue(context.Background(), RequestIDKey{}, "req-1")
	ctx = context.WithValue(ctx, TraceIDKey{}, "trace-1")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected one entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["trace_id"] != "trace-1" {
		t.Fatalf("unexpected fields: %v", fields)
	}
}
