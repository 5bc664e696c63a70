package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestGenerateJWT(t *testing.T) {
	out, err := run(t, "generate-jwt", "--client-id", "demo", "--secret", "letmein", "--user-id", "u1")
	require.NoError(t, err)

	secrets := tokens.SecretFunc(func(ctx context.Context, clientID string) (string, error) {
		return "letmein", nil
	})
	claims, err := tokens.NewVerifier(secrets, 0).Parse(context.Background(), strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "demo", claims.ClientID)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, tokens.DefaultIssuer, claims.Issuer)
	assert.Nil(t, claims.ExpiresAt)

	out, err = run(t, "generate-jwt", "--client-id", "demo", "--secret", "letmein", "--header", "--ttl", "1h")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Bearer "))
}

func TestGenerateJWTRequiresFlags(t *testing.T) {
	_, err := run(t, "generate-jwt", "--client-id", "demo")
	assert.Error(t, err)
}
