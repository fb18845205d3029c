// Package testutil provides test utilities for pgclient
package testutil

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	tc "github.com/testcontainers/testcontainers-go"
	tcpsql "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// TestDB points an integration test at a PostgreSQL server.
type TestDB struct {
	// ConnString is handed to the driver under test.
	ConnString string

	// Pool is an independent connection used for fixtures and assertions.
	Pool *pgxpool.Pool
}

// NewTestDB resolves a test database. DATABASE_URL is used when set;
// otherwise, with PGCLIENT_TESTCONTAINERS=1, a throwaway postgres container
// is started for the test. The test is skipped when neither is available.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		if os.Getenv("PGCLIENT_TESTCONTAINERS") != "1" {
			t.Skip("DATABASE_URL not set, skipping integration test")
			return nil
		}
		dbURL = startContainer(ctx, t)
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	db := &TestDB{ConnString: dbURL, Pool: pool}
	t.Cleanup(db.Close)
	return db
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()

	ctr, err := tcpsql.Run(
		ctx,
		"postgres:16-alpine",
		tcpsql.BasicWaitStrategies(),
		tc.CustomizeRequest(tc.GenericContainerRequest{
			ProviderType: containerProvider(),
		}),
		tcpsql.WithDatabase("pgclient"),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := ctr.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate postgres container: %v", err)
		}
	})

	connURL, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get container connection string: %v", err)
	}
	return connURL
}

// containerProvider prefers podman when it is installed.
func containerProvider() tc.ProviderType {
	if _, err := exec.LookPath("podman"); err == nil {
		return tc.ProviderPodman
	}
	return tc.ProviderDocker
}

// Close closes the fixture pool
func (db *TestDB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// CreateTable creates a scratch table that is dropped when the test ends.
// columns is the column list, e.g. "id int4, name text".
func (db *TestDB) CreateTable(ctx context.Context, t *testing.T, name, columns string) {
	t.Helper()

	if _, err := db.Pool.Exec(ctx, fmt.Sprintf("CREATE TABLE %s (%s)", name, columns)); err != nil {
		t.Fatalf("Failed to create table %s: %v", name, err)
	}
	t.Cleanup(func() {
		_, _ = db.Pool.Exec(context.Background(), fmt.Sprintf("DROP TABLE IF EXISTS %s", name))
	})
}

// CountRows returns the number of rows in table.
func (db *TestDB) CountRows(ctx context.Context, t *testing.T, table string) int {
	t.Helper()

	var n int
	if err := db.Pool.QueryRow(ctx, fmt.Sprintf("SELECT count(*) FROM %s", table)).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s: %v", table, err)
	}
	return n
}

// RequireIntegration skips the test if not running integration tests
func RequireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("DATABASE_URL") == "" && os.Getenv("PGCLIENT_TESTCONTAINERS") != "1" {
		t.Skip("Skipping integration test: DATABASE_URL not set")
	}
}
