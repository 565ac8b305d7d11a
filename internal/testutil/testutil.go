// Package testutil holds helpers shared by integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/photovault/photovault/internal/model"
)

// migrations in apply order.
var migrations = []string{
	"000001_init",
	"000002_image_vectors",
}

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 770077

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ApplyMigration runs migrations/<name>.<direction>.sql.
func ApplyMigration(ctx context.Context, pool *pgxpool.Pool, name, direction string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	path := filepath.Join(root, "migrations", name+"."+direction+".sql")
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s migration %s: %w", direction, name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s migration %s: %w", direction, name, err)
	}
	return nil
}

// ResetDatabase rolls every migration back and applies them again.
func ResetDatabase(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(migrations) - 1; i >= 0; i-- {
		if err := ApplyMigration(ctx, pool, migrations[i], "down"); err != nil {
			return err
		}
	}
	for _, name := range migrations {
		if err := ApplyMigration(ctx, pool, name, "up"); err != nil {
			return err
		}
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// NewTestUser creates a user with a unique email. The password hash is a
// placeholder; tests that log in hash a real password.
func NewTestUser(t testing.TB) *model.User {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Microsecond)
	id := UniqueID("user")
	return &model.User{
		ID:           id,
		Email:        id + "@example.com",
		Name:         "Test User",
		PasswordHash: "placeholder",
		CreatedAt:    now,
	}
}

// NewTestImage creates an uncaptioned image owned by ownerID.
func NewTestImage(t testing.TB, ownerID, filename string) *model.Image {
	t.Helper()
	id := UniqueID("img")
	return &model.Image{
		ID:          id,
		OwnerID:     ownerID,
		Filename:    filename,
		Path:        filepath.Join(os.TempDir(), id+filepath.Ext(filename)),
		ContentType: "image/png",
		Size:        1024,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
}

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
