// Package testdb provisions a throwaway postgres database per test with the
// repository migrations applied.
package testdb

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewDatabase creates a fresh database next to POSTGRES_DSN_TEST and returns
// a gorm handle on it. The database is dropped when the test ends.
func NewDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	baseDSN := strings.TrimSpace(os.Getenv("POSTGRES_DSN_TEST"))
	if baseDSN == "" {
		t.Skip("POSTGRES_DSN_TEST not set")
	}
	adminDSN := os.Getenv("POSTGRES_ADMIN_DSN_TEST")
	if adminDSN == "" {
		adminDSN = withDatabase(baseDSN, "postgres")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	adminConn, err := pgx.Connect(ctx, adminDSN)
	if err != nil {
		t.Fatalf("connect admin db: %v", err)
	}
	dbName := "zkcred_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if _, err := adminConn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		_ = adminConn.Close(ctx)
		t.Fatalf("create database: %v", err)
	}

	pool, err := pgxpool.New(ctx, withDatabase(baseDSN, dbName))
	if err != nil {
		_ = dropDatabase(ctx, adminConn, dbName)
		t.Fatalf("connect test db: %v", err)
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() {
		_ = sqlDB.Close()
		pool.Close()
		_ = dropDatabase(context.Background(), adminConn, dbName)
		_ = adminConn.Close(context.Background())
	})

	applyMigrations(t, pool)

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		t.Fatalf("open gorm: %v", err)
	}
	return db
}

func applyMigrations(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	dir := migrationsDir(t)
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations: %v", err)
	}
	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, file := range files {
		payload, err := os.ReadFile(file)
		if err != nil {
			t.Fatalf("read migration %s: %v", file, err)
		}
		if len(strings.TrimSpace(string(payload))) == 0 {
			continue
		}
		if _, err := pool.Exec(ctx, string(payload)); err != nil {
			t.Fatalf("apply migration %s: %v", file, err)
		}
	}
}

func migrationsDir(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("resolve testdb path")
	}
	path := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", "..", "..", "..", "migrations"))
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("migrations dir not found: %v", err)
	}
	return path
}

func withDatabase(dsn, dbName string) string {
	parsed, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	parsed.Path = "/" + dbName
	return parsed.String()
}

func dropDatabase(ctx context.Context, conn *pgx.Conn, name string) error {
	_, err := conn.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{name}.Sanitize()+" WITH (FORCE)")
	return err
}
