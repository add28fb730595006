package repotest

import (
	"os"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/edi-spaghetti/cs50w-network/internal/domain"
	"github.com/edi-spaghetti/cs50w-network/internal/repository"
	"github.com/edi-spaghetti/cs50w-network/pkg/database"
)

// Postgres opens the database described by the NETWORK_TEST_PG_* variables,
// drops and recreates the network tables, and closes it when t ends. The
// test is skipped when NETWORK_TEST_PG_HOST is unset.
func Postgres(t testing.TB) *gorm.DB {
	t.Helper()
	host := os.Getenv("NETWORK_TEST_PG_HOST")
	if host == "" {
		t.Skip("NETWORK_TEST_PG_HOST not set")
	}
	port, err := strconv.Atoi(getenv("NETWORK_TEST_PG_PORT", "5432"))
	require.NoError(t, err)

	db, err := database.New(&database.Config{
		Driver:       "postgres",
		Host:         host,
		Port:         port,
		User:         getenv("NETWORK_TEST_PG_USER", "postgres"),
		Password:     os.Getenv("NETWORK_TEST_PG_PASSWORD"),
		DBName:       getenv("NETWORK_TEST_PG_DBNAME", "network_test"),
		SSLMode:      "disable",
		MaxOpenConns: 16,
		LogLevel:     "silent",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	require.NoError(t, db.Migrator().DropTable(domain.AllModels()...))
	require.NoError(t, repository.Migrate(db))
	return db
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
