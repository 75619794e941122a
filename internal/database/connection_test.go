package database

import (
	"testing"
	"time"

	"github.com/skyfare/booking-backend/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestConnectionString_AppendsStatementTimeout(t *testing.T) {
	cfg := config.DatabaseConfig{
		URL:              "postgres://app@localhost:5432/skyfare",
		StatementTimeout: 5 * time.Second,
	}

	url := connectionString(cfg)
	assert.Equal(t, "postgres://app@localhost:5432/skyfare?prefer_simple_protocol=true&statement_timeout=5000", url)
}

func TestConnectionString_RespectsExistingQueryParams(t *testing.T) {
	cfg := config.DatabaseConfig{
		URL:              "postgres://app@localhost:5432/skyfare?sslmode=require",
		StatementTimeout: 2 * time.Second,
	}

	url := connectionString(cfg)
	assert.Equal(t, "postgres://app@localhost:5432/skyfare?sslmode=require&prefer_simple_protocol=true&statement_timeout=2000", url)
}

func TestConnectionString_ZeroTimeoutOmitted(t *testing.T) {
	cfg := config.DatabaseConfig{URL: "postgres://app@localhost:5432/skyfare"}

	url := connectionString(cfg)
	assert.Equal(t, "postgres://app@localhost:5432/skyfare?prefer_simple_protocol=true", url)
}

func TestConnectionString_DoesNotDuplicateParams(t *testing.T) {
	cfg := config.DatabaseConfig{
		URL:              "postgres://app@localhost:5432/skyfare?prefer_simple_protocol=true&statement_timeout=9000",
		StatementTimeout: 5 * time.Second,
	}

	url := connectionString(cfg)
	assert.Equal(t, "postgres://app@localhost:5432/skyfare?prefer_simple_protocol=true&statement_timeout=9000", url)
}
