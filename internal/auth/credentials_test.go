package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/challenge75/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(now func() time.Time) *Service {
	return NewService("super-secret", 0, WithClock(now), WithBcryptCost(bcrypt.MinCost))
}

func TestHashAndVerify(t *testing.T) {
	t.Parallel()
	s := newTestService(time.Now)

	first, err := s.Hash("hunter22")
	require.NoError(t, err)
	second, err := s.Hash("hunter22")
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "salt must vary between hashes")
	assert.True(t, s.Verify("hunter22", first))
	assert.True(t, s.Verify("hunter22", second))
	assert.False(t, s.Verify("hunter23", first))
	assert.False(t, s.Verify("hunter22", "not-a-digest"))
}

func TestIssueAndAuthenticate(t *testing.T) {
	t.Parallel()
	s := newTestService(time.Now)

	tok, err := s.Issue("user-1", "alice@example.com", domain.RoleUser)
	require.NoError(t, err)

	claims, ok := s.Authenticate(tok)
	require.True(t, ok)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)
}

func TestAuthenticate_ExpiresAfterSevenDays(t *testing.T) {
	t.Parallel()
	issuedAt := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	now := issuedAt
	s := newTestService(func() time.Time { return now })

	tok, err := s.Issue("user-1", "a@b.c", domain.RoleUser)
	require.NoError(t, err)

	now = issuedAt.Add(7*24*time.Hour - time.Minute)
	_, ok := s.Authenticate(tok)
	assert.True(t, ok, "token should still be valid just before expiry")

	now = issuedAt.Add(7*24*time.Hour + time.Minute)
	_, ok = s.Authenticate(tok)
	assert.False(t, ok, "token older than seven days must fail")
}

func TestAuthenticate_FailsClosed(t *testing.T) {
	t.Parallel()
	s := newTestService(time.Now)
	other := NewService("other-secret", 0)

	forged, err := other.Issue("user-1", "a@b.c", domain.RoleAdmin)
	require.NoError(t, err)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":     "",
		"malformed": "not.a.jwt",
		"garbage":   "abc",
		"wrong key": forged,
		"alg none":  unsigned,
	} {
		_, ok := s.Authenticate(tok)
		assert.False(t, ok, name)
	}
}

type fakeUsers struct {
	user *domain.User
	err  error
}

func (f *fakeUsers) UserByID(context.Context, string) (*domain.User, error) {
	return f.user, f.err
}

func TestResolve(t *testing.T) {
	t.Parallel()
	s := newTestService(time.Now)
	ctx := context.Background()
	claims := &Claims{UserID: "u1"}

	u, err := s.Resolve(ctx, &fakeUsers{user: &domain.User{ID: "u1"}}, claims)
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = s.Resolve(ctx, &fakeUsers{err: domain.ErrUserNotFound}, claims)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.Resolve(ctx, &fakeUsers{err: errors.New("db down")}, claims)
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrUnauthorized)

	_, err = s.Resolve(ctx, &fakeUsers{}, nil)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
