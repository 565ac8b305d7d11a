package auth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-test-secret-test-secret"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestTokenService(t *testing.T, clock *fakeClock) (*TokenService, *MemoryRevocationStore) {
	t.Helper()

	store := NewMemoryRevocationStore()
	store.now = clock.Now

	svc, err := NewTokenService(testSecret, time.Hour, store, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	return svc, store
}

func TestTokenService_IssueVerifyRoundTrip(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)
	want := Identity{UserID: "01HZUSER", Email: "ada@example.com"}

	token, expiresAt, err := svc.Issue(want)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if got := strings.Count(token, "."); got != 2 {
		t.Errorf("token should have three segments, got %d dots", got)
	}
	if !expiresAt.Equal(clock.Now().Add(time.Hour)) {
		t.Errorf("expiresAt = %v, want %v", expiresAt, clock.Now().Add(time.Hour))
	}

	got, err := svc.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if got != want {
		t.Errorf("Verify = %+v, want %+v", got, want)
	}
}

func TestTokenService_ClaimNames(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)

	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		t.Fatalf("ParseUnverified failed: %v", err)
	}

	for _, name := range []string{"userId", "email", "iat", "exp"} {
		if _, ok := claims[name]; !ok {
			t.Errorf("claim %q missing from token", name)
		}
	}
}

func TestTokenService_Expired(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)

	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(time.Hour + time.Second)

	_, err = svc.Verify(context.Background(), token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Errorf("Verify error = %v, want ErrExpiredToken", err)
	}
}

func TestTokenService_Invalid(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)

	good, _, err := svc.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	other, err := NewTokenService("another-secret-another-secret-xx", time.Hour, NewMemoryRevocationStore(), WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	foreign, _, err := other.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"userId": "u1",
		"exp":    clock.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"email": "u1@example.com",
		"exp":   clock.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": "u1",
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	parts := strings.Split(good, ".")
	tampered := parts[0] + "." + parts[1] + "x." + parts[2]

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"two segments", parts[0] + "." + parts[1]},
		{"tampered payload", tampered},
		{"wrong secret", foreign},
		{"alg none", noneAlg},
		{"missing user id", noUser},
		{"missing expiry", noExpiry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := svc.Verify(context.Background(), tt.token)
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("Verify error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestTokenService_Missing(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, newFakeClock())

	for _, token := range []string{"", "   "} {
		if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrMissingCredential) {
			t.Errorf("Verify(%q) error = %v, want ErrMissingCredential", token, err)
		}
	}
}

func TestTokenService_Revoke(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, store := newTestTokenService(t, clock)
	ctx := context.Background()

	token, expiresAt, err := svc.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	sibling, _, err := svc.Issue(Identity{UserID: "u2", Email: "u2@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if err := svc.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	if _, err := svc.Verify(ctx, token); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("Verify after revoke = %v, want ErrRevokedToken", err)
	}
	if _, err := svc.Verify(ctx, sibling); err != nil {
		t.Errorf("unrelated token should stay valid, got %v", err)
	}

	store.mu.RLock()
	entry, ok := store.entries[QuickHash(token)]
	store.mu.RUnlock()
	if !ok {
		t.Fatal("revocation entry should be keyed by QuickHash(token)")
	}
	if !entry.Equal(expiresAt) {
		t.Errorf("entry expiry = %v, want token expiry %v", entry, expiresAt)
	}
}

func TestTokenService_RevokeKeepsOtherSessions(t *testing.T) {
	t.Parallel()

	// The fake clock never advances, so every token shares iat and exp.
	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)
	ctx := context.Background()
	id := Identity{UserID: "u1", Email: "u1@example.com"}

	laptop, _, err := svc.Issue(id)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	phone, _, err := svc.Issue(id)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if laptop == phone {
		t.Fatal("tokens issued in the same second must differ")
	}

	if err := svc.Revoke(ctx, laptop); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	relogin, _, err := svc.Issue(id)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Verify(ctx, laptop); !errors.Is(err, ErrRevokedToken) {
		t.Errorf("Verify(revoked) = %v, want ErrRevokedToken", err)
	}
	for name, token := range map[string]string{"other session": phone, "fresh login": relogin} {
		if _, err := svc.Verify(ctx, token); err != nil {
			t.Errorf("Verify(%s) = %v, want nil", name, err)
		}
	}
}

func TestTokenService_RevokedConcurrently(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, _ := newTestTokenService(t, clock)
	ctx := context.Background()

	token, _, err := svc.Issue(Identity{UserID: "u1", Email: "u1@example.com"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if err := svc.Revoke(ctx, token); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	const callers = 50
	var wg sync.WaitGroup
	errs := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Verify(ctx, token)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if !errors.Is(err, ErrRevokedToken) {
			t.Errorf("concurrent Verify = %v, want ErrRevokedToken", err)
		}
	}
}

func TestTokenService_RevokeExpiredIsNoop(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, store := newTestTokenService(t, clock)

	token, _, err := svc.Issue(Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	clock.Advance(2 * time.Hour)

	if err := svc.Revoke(context.Background(), token); err != nil {
		t.Fatalf("Revoke of expired token should succeed, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("expired token should not create an entry, store has %d", store.Len())
	}
}

func TestTokenService_RevokeInvalid(t *testing.T) {
	t.Parallel()

	svc, _ := newTestTokenService(t, newFakeClock())

	if err := svc.Revoke(context.Background(), "garbage"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Revoke(garbage) = %v, want ErrInvalidToken", err)
	}
}

type failingStore struct{}

func (failingStore) Revoke(context.Context, string, time.Time) error {
	return errors.New("redis down")
}

func (failingStore) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestTokenService_StoreFailureFailsClosed(t *testing.T) {
	t.Parallel()

	clock := newFakeClock()
	svc, err := NewTokenService(testSecret, time.Hour, failingStore{}, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}

	token, _, err := svc.Issue(Identity{UserID: "u1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := svc.Verify(context.Background(), token); !errors.Is(err, ErrRevocationUnavailable) {
		t.Errorf("Verify = %v, want ErrRevocationUnavailable", err)
	}
	if err := svc.Revoke(context.Background(), token); !errors.Is(err, ErrRevocationUnavailable) {
		t.Errorf("Revoke = %v, want ErrRevocationUnavailable", err)
	}
}

func TestNewTokenService_Validation(t *testing.T) {
	t.Parallel()

	store := NewMemoryRevocationStore()

	if _, err := NewTokenService("", time.Hour, store); !errors.Is(err, ErrWeakSecret) {
		t.Errorf("empty secret error = %v, want ErrWeakSecret", err)
	}
	if _, err := NewTokenService(testSecret, 0, store); err == nil {
		t.Error("zero ttl should fail")
	}
	if _, err := NewTokenService(testSecret, time.Hour, nil); err == nil {
		t.Error("nil store should fail")
	}
}
