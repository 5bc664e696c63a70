package testutil

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/remote"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
)

func TestAuth(t *testing.T) {
	svc := autorisaties.NewService(autorisaties.NewStore(OpenDB(t, autorisaties.Models()...)))
	header := Auth(t, svc)
	require.Contains(t, header, "Bearer ")

	v := tokens.NewVerifier(svc.Store(), 0)
	claims, err := v.Parse(context.Background(), header[len("Bearer "):])
	require.NoError(t, err)
	assert.Equal(t, ClientID, claims.ClientID)

	g, err := svc.Grant(context.Background(), ClientID, autorisaties.ComponentDRC)
	require.NoError(t, err)
	assert.True(t, g.All)
}

func TestSchemaServer(t *testing.T) {
	srv := SchemaServer(t)
	resp, err := http.Get(SpecURL(srv, "documenten"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "EnkelvoudigInformatieObject")

	resp2, err := http.Get(srv.URL + "/onbekend/openapi.yaml")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestClearCaches(t *testing.T) {
	cache := remote.NewMemoryCache()
	require.NoError(t, cache.Set(context.Background(), "k", []byte("v"), 0))
	ClearCaches(t, cache)
	_, ok, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
