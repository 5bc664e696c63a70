// Package sessions tracks admin tokens that were logged out before they expired.
package sessions

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
)

var ErrRevoked = errors.New("token has been revoked")

const defaultPrefix = "blacklist:access:"

// Revocations stores revoked tokens in Redis, or in memory when no client is given.
type Revocations struct {
	client *redis.Client
	prefix string

	mu  sync.Mutex
	mem map[string]time.Time
	now func() time.Time
}

func NewRevocations(client *redis.Client) *Revocations {
	return &Revocations{client: client, prefix: defaultPrefix, mem: map[string]time.Time{}, now: time.Now}
}

func (r *Revocations) key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return r.prefix + hex.EncodeToString(sum[:])
}

// Revoke blacklists token for ttl. A non-positive ttl keeps it for an hour.
func (r *Revocations) Revoke(ctx context.Context, token string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if r.client != nil {
		return r.client.Set(ctx, r.key(token), "1", ttl).Err()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mem[r.key(token)] = r.now().Add(ttl)
	return nil
}

func (r *Revocations) IsRevoked(ctx context.Context, token string) (bool, error) {
	if r.client != nil {
		n, err := r.client.Exists(ctx, r.key(token)).Result()
		if err != nil {
			return false, err
		}
		return n > 0, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	k := r.key(token)
	until, ok := r.mem[k]
	if !ok {
		return false, nil
	}
	if r.now().After(until) {
		delete(r.mem, k)
		return false, nil
	}
	return true, nil
}

// Verifier rejects revoked tokens before handing them to Next.
type Verifier struct {
	Next        middleware.Verifier
	Revocations *Revocations
}

func (v *Verifier) Verify(ctx context.Context, raw string) (middleware.Token, error) {
	revoked, err := v.Revocations.IsRevoked(ctx, raw)
	if err != nil {
		return nil, err
	}
	if revoked {
		return nil, ErrRevoked
	}
	return v.Next.Verify(ctx, raw)
}
