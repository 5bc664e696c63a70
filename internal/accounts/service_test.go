package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertFromClaims(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewService(repo)
	ctx := context.Background()
	claims := map[string]interface{}{
		"sub":                "sub-123",
		"email":              "x@example.com",
		"name":               "X User",
		"preferred_username": "xuser",
		"groups":             []interface{}{"/openzaak-admins", "other"},
	}

	a, err := svc.UpsertFromClaims(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, "sub-123", a.Sub)
	assert.Equal(t, "x@example.com", a.Email)
	assert.Equal(t, "X User", a.Name)
	assert.Equal(t, "xuser", a.Username)
	assert.True(t, a.InGroup("openzaak-admins"))
	assert.False(t, a.InGroup("beheer"))
	assert.NotEmpty(t, a.ID)
	created := a.CreatedAt

	repo.now = func() time.Time { return created.Add(time.Hour) }
	claims["email"] = "y@example.com"
	claims["groups"] = []string{"beheer"}
	b, err := svc.UpsertFromClaims(ctx, claims)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, "y@example.com", b.Email)
	assert.Equal(t, created, b.CreatedAt)
	assert.Equal(t, created.Add(time.Hour), b.LastLogin)
	assert.Equal(t, []string{"beheer"}, b.Groups)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpsertFromClaimsWithoutSubject(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	_, err := svc.UpsertFromClaims(context.Background(), map[string]interface{}{"email": "x@example.com"})
	assert.True(t, errors.Is(err, ErrNoSubject))

	got, err := svc.GetBySub(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}
