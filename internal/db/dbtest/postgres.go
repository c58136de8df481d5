//go:build integration

// Package dbtest starts a throwaway Postgres with the schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"campusmarket-be/internal/db"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func migrationsDir() string {
	_, file, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(file), "..", "..", "..", "migrations")
}

// Start runs a Postgres container, migrates it up and returns a connection.
// The container is terminated when the test ends.
func Start(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	conn, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetMaxOpenConns(20)

	require.NoError(t, db.Migrate(conn, migrationsDir(), db.MigrateUp))
	return conn
}

// SeedUser inserts a user with the given role and returns its id.
func SeedUser(t *testing.T, conn *sql.DB, role string) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(
		`INSERT INTO users (email, role) VALUES ($1, $2) RETURNING id`,
		fmt.Sprintf("%s-%d@campus.test", role, time.Now().UnixNano()), role,
	).Scan(&id)
	require.NoError(t, err)
	return id
}

// SeedProduct inserts an available product and returns its id.
func SeedProduct(t *testing.T, conn *sql.DB, sellerID int64, price string, qty int) int64 {
	t.Helper()
	var id int64
	err := conn.QueryRow(
		`INSERT INTO products (seller_id, name, price, quantity, status)
		 VALUES ($1, 'Calculus textbook', $2, $3, 'available') RETURNING id`,
		sellerID, price, qty,
	).Scan(&id)
	require.NoError(t, err)
	return id
}
