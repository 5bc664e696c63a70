// Package testutil bootstraps what API tests need: databases, tokens,
// autorisaties and the OpenAPI documents of remote components.
package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/open-zaak/open-zaak/backend/go-services/api/openapi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/database"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
)

const (
	ClientID = "testsuite"
	Secret   = "letmein"
)

// OpenDB returns a private in-memory sqlite database with models migrated.
func OpenDB(t testing.TB, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := database.OpenGorm("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()), models...)
	require.NoError(t, err)
	return db
}

// GenerateJWTAuth returns an Authorization header value for clientID.
func GenerateJWTAuth(t testing.TB, clientID, secret string) string {
	t.Helper()
	h, err := tokens.AuthorizationHeader(clientID, secret, tokens.Options{UserID: "test_user", UserRepresentation: "Test User"})
	require.NoError(t, err)
	return h
}

// Auth creates an applicatie for ClientID and returns the header to authenticate as it.
// Without autorisaties the applicatie has all autorisaties.
func Auth(t testing.TB, svc *autorisaties.Service, auts ...autorisaties.Autorisatie) string {
	t.Helper()
	app := &autorisaties.Applicatie{
		ClientIDs:             []string{ClientID},
		Label:                 "testsuite",
		HeeftAlleAutorisaties: len(auts) == 0,
		Autorisaties:          auts,
	}
	require.NoError(t, svc.CreateApplicatie(context.Background(), app, Secret))
	return GenerateJWTAuth(t, ClientID, Secret)
}

// SchemaServer serves the embedded OpenAPI documents at /<component>/openapi.yaml.
func SchemaServer(t testing.TB) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		component := strings.TrimSuffix(strings.Trim(r.URL.Path, "/"), "/openapi.yaml")
		doc, err := openapi.Document(component)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		_, _ = w.Write(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// SpecURL is the URL of a component document on a SchemaServer.
func SpecURL(srv *httptest.Server, component string) string {
	return srv.URL + "/" + component + "/openapi.yaml"
}

// Clearer is implemented by caches and schema loaders.
type Clearer interface {
	Clear(ctx context.Context) error
}

// ClearCaches empties caches now and again when the test ends.
func ClearCaches(t testing.TB, caches ...Clearer) {
	t.Helper()
	clear := func() {
		for _, c := range caches {
			require.NoError(t, c.Clear(context.Background()))
		}
	}
	clear()
	t.Cleanup(clear)
}
