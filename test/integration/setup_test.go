package integration

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/availability/internal/platform/db"
	"github.com/carebook/availability/migrations"
)

// testDB is the shared server. Nil when no database could be started.
type testDB struct {
	Pool    *pgxpool.Pool
	ConnStr string
}

var globalDB *testDB

// TestMain uses TEST_DATABASE_URL when set, otherwise a throwaway container.
func TestMain(m *testing.M) {
	ctx := context.Background()

	tdb, cleanup, err := setupDatabase(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "integration tests skipped: %v\n", err)
	} else {
		globalDB = tdb
	}

	code := m.Run()
	if cleanup != nil {
		cleanup()
	}
	os.Exit(code)
}

func setupDatabase(ctx context.Context) (*testDB, func(), error) {
	connStr := os.Getenv("TEST_DATABASE_URL")
	stop := func() {}
	if connStr == "" {
		var err error
		connStr, stop, err = startPostgresContainer(ctx)
		if err != nil {
			return nil, nil, err
		}
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		stop()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	// Extensions are per database; keep btree_gist in public so dropping a
	// test schema never takes it along.
	if _, err := pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS btree_gist SCHEMA public`); err != nil {
		pool.Close()
		stop()
		return nil, nil, fmt.Errorf("create btree_gist: %w", err)
	}

	return &testDB{Pool: pool, ConnStr: connStr}, func() {
		pool.Close()
		stop()
	}, nil
}

func requireDB(t *testing.T) {
	t.Helper()
	if globalDB == nil {
		t.Skip("no database available")
	}
}

// newSchemaPool migrates a fresh schema and returns a pool whose
// connections resolve tables there. The schema is dropped on cleanup.
func newSchemaPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	requireDB(t)
	ctx := context.Background()

	schema := "it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")
	m, err := db.NewMigrator(globalDB.Pool, migrations.FS, schema)
	if err != nil {
		t.Fatalf("new migrator: %v", err)
	}
	if _, err := m.Up(ctx); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}

	cfg, err := pgxpool.ParseConfig(globalDB.ConnStr)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.MaxConns = 4
	cfg.ConnConfig.RuntimeParams["search_path"] = schema + ", public"
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("schema pool: %v", err)
	}

	t.Cleanup(func() {
		pool.Close()
		if _, err := globalDB.Pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
	})
	return pool
}
