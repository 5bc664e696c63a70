package sessions

import (
	"context"
	"errors"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
)

func TestRevocations_Redis(t *testing.T) {
	m, err := mr.Run()
	require.NoError(t, err)
	defer m.Close()

	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	rev := NewRevocations(client)

	ctx := context.Background()
	token := "access-token-1"
	require.NoError(t, rev.Revoke(ctx, token, 2*time.Second))

	ok, err := rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.True(t, ok)
	require.False(t, m.Exists(defaultPrefix+token), "raw tokens are not stored")

	// advance past TTL
	m.FastForward(3 * time.Second)

	ok, err = rev.IsRevoked(ctx, token)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRevocations_Memory(t *testing.T) {
	rev := NewRevocations(nil)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rev.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, rev.Revoke(ctx, "tok", time.Minute))
	ok, err := rev.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = rev.IsRevoked(ctx, "other")
	require.NoError(t, err)
	require.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, err = rev.IsRevoked(ctx, "tok")
	require.NoError(t, err)
	require.False(t, ok)
}

type stubToken struct{}

func (stubToken) Claims(v interface{}) error { return nil }

type stubVerifier struct{ calls int }

func (s *stubVerifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	s.calls++
	return stubToken{}, nil
}

func TestVerifierRejectsRevoked(t *testing.T) {
	next := &stubVerifier{}
	v := &Verifier{Next: next, Revocations: NewRevocations(nil)}
	ctx := context.Background()

	_, err := v.Verify(ctx, "tok")
	require.NoError(t, err)
	require.Equal(t, 1, next.calls)

	require.NoError(t, v.Revocations.Revoke(ctx, "tok", time.Minute))
	_, err = v.Verify(ctx, "tok")
	require.True(t, errors.Is(err, ErrRevoked))
	require.Equal(t, 1, next.calls)
}
