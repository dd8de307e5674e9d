package database

import (
	"strings"
	"testing"
	"time"

	"github.com/Marcin-Purol/Payment-Gateway/internal/infra/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.PostgresSettings{
		Host:           "db",
		Port:           5432,
		User:           "gateway",
		Password:       "p@ss word",
		Database:       "payments",
		ConnectTimeout: 10 * time.Second,
	})

	if !strings.HasPrefix(dsn, "postgres://gateway:p%40ss%20word@db:5432/payments?") {
		t.Fatalf("unexpected dsn prefix: %s", dsn)
	}
	if !strings.Contains(dsn, "sslmode=disable") || !strings.Contains(dsn, "connect_timeout=10") {
		t.Fatalf("expected sslmode and connect_timeout in %s", dsn)
	}
}
