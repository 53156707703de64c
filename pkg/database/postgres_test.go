package database

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sales-credit-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5433, User: "credit", Password: "secret", Name: "sales_credit", SSLMode: "disable"})
	require.Equal(t, "host=db port=5433 user=credit password=secret dbname=sales_credit sslmode=disable application_name=sales-credit-api", dsn)
}
