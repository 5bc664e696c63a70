package server

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/config"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/repository"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/oidc"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/remote"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/vertrouwelijkheid"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/testutil"
)

const (
	issuer      = "https://keycloak.example.com/realms/openzaak"
	adminClient = "openzaak-admin"
	adminGroup  = "openzaak-admins"
)

type testServer struct {
	*Server
	key *rsa.PrivateKey
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{SiteURL: "http://testserver"},
		Admin:  config.AdminConfig{Group: adminGroup},
		APISpecs: config.APISpecConfig{
			DRC: "https://drc.example.nl/api/v1/schema/openapi.yaml",
			BRC: "https://brc.example.nl/api/v1/schema/openapi.yaml",
			ZTC: "https://ztc.example.nl/api/v1/schema/openapi.yaml",
			ZRC: "https://zrc.example.nl/api/v1/schema/openapi.yaml",
		},
		RateLimit: config.RateLimitConfig{Enabled: true, RPS: 1000, Burst: 1000, Window: time.Second},
	}
}

func newTestServer(t *testing.T, checks map[string]Check) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	cfg := testConfig()
	client := remote.NewClient()
	loader := schema.NewLoader(client)
	registerSpecs(loader, cfg.APISpecs)

	s, err := New(Deps{
		Config:        cfg,
		DB:            testutil.OpenDB(t, Models()...),
		Documents:     repository.NewMemoryRepo(),
		Fetcher:       client,
		Loader:        loader,
		AdminVerifier: oidc.NewStaticVerifier(issuer, adminClient, key.Public()),
		Checks:        checks,
	})
	require.NoError(t, err)
	return &testServer{Server: s, key: key}
}

func (s *testServer) adminToken(t *testing.T, groups ...string) string {
	t.Helper()
	raw, err := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"iss": issuer, "aud": adminClient, "sub": "admin-1", "name": "Beheerder",
		"exp": time.Now().Add(time.Hour).Unix(), "groups": groups,
	}).SignedString(s.key)
	require.NoError(t, err)
	return "Bearer " + raw
}

func (s *testServer) do(t *testing.T, method, target string, body interface{}, auth string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		req = httptest.NewRequest(method, "http://testserver"+target, strings.NewReader(string(b)))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, "http://testserver"+target, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestNewRequiresBackends(t *testing.T) {
	_, err := New(Deps{Config: testConfig()})
	assert.Error(t, err)
}

func TestHealthAndReady(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", w.Body.String())

	w = s.do(t, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "ready", body["status"])
	assert.Equal(t, true, body["deps"].(map[string]interface{})["database"])

	down := newTestServer(t, map[string]Check{
		"redis": func(ctx context.Context) error { return errors.New("connection refused") },
	})
	w = down.do(t, http.MethodGet, "/ready", nil, "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	body = decode(t, w)
	assert.Equal(t, "not_ready", body["status"])
	assert.Equal(t, false, body["deps"].(map[string]interface{})["redis"])
}

func TestSchemasAndCORS(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(t, http.MethodGet, "/besluiten/api/v1/schema/openapi.yaml", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Besluiten API")

	w = s.do(t, http.MethodOptions, "/besluiten/api/v1/besluiten", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestComponentAPIsRequireToken(t *testing.T) {
	s := newTestServer(t, nil)
	for _, p := range []string{
		"/catalogi/api/v1/informatieobjecttypen",
		"/documenten/api/v1/enkelvoudiginformatieobjecten",
		"/besluiten/api/v1/besluiten",
	} {
		assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, p, nil, "").Code, p)
	}

	auth := testutil.Auth(t, s.Autorisaties)
	w := s.do(t, http.MethodGet, "/besluiten/api/v1/besluiten", nil, auth)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openzaak_rate_limit_allowed_total")
}

// TestLinkedDocumentCannotBeDeleted runs a document through the three components.
func TestLinkedDocumentCannotBeDeleted(t *testing.T) {
	s := newTestServer(t, nil)
	ctx := context.Background()
	auth := testutil.Auth(t, s.Autorisaties)

	catalog := &catalogi.Catalogus{Domein: "ABC", RSIN: "000000000", ContactpersoonBeheerNaam: "Ad Alta"}
	require.NoError(t, s.Catalogi.CreateCatalogus(ctx, catalog))
	iot := &catalogi.InformatieObjectType{
		CatalogusUUID:               catalog.UUID,
		Omschrijving:                "Besluitbrief",
		Vertrouwelijkheidaanduiding: vertrouwelijkheid.Openbaar,
		Geldigheid:                  catalogi.Geldigheid{BeginGeldigheid: "2018-01-01"},
	}
	require.NoError(t, s.Catalogi.CreateInformatieObjectType(ctx, iot))
	_, err := s.Catalogi.PublishInformatieObjectType(ctx, iot.UUID)
	require.NoError(t, err)
	bt := &catalogi.BesluitType{
		CatalogusUUID:         catalog.UUID,
		Omschrijving:          "Vergunning",
		InformatieObjectTypen: []string{iot.UUID},
		Geldigheid:            catalogi.Geldigheid{BeginGeldigheid: "2018-01-01"},
	}
	require.NoError(t, s.Catalogi.CreateBesluitType(ctx, bt))
	_, err = s.Catalogi.PublishBesluitType(ctx, bt.UUID)
	require.NoError(t, err)

	iotURL := "http://testserver/catalogi/api/v1/informatieobjecttypen/" + iot.UUID
	w := s.do(t, http.MethodPost, "/documenten/api/v1/enkelvoudiginformatieobjecten", map[string]interface{}{
		"bronorganisatie":      "517439943",
		"creatiedatum":         "2018-06-27",
		"titel":                "besluitbrief",
		"auteur":               "test_auteur",
		"taal":                 "nld",
		"inhoud":               base64.StdEncoding.EncodeToString([]byte("inhoud")),
		"informatieobjecttype": iotURL,
	}, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	docURL := decode(t, w)["url"].(string)

	w = s.do(t, http.MethodPost, "/besluiten/api/v1/besluiten", map[string]interface{}{
		"verantwoordelijkeOrganisatie": "517439943",
		"besluittype":                  "http://testserver/catalogi/api/v1/besluittypen/" + bt.UUID,
		"datum":                        "2018-09-06",
		"ingangsdatum":                 "2018-10-01",
	}, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	besluitURL := decode(t, w)["url"].(string)

	w = s.do(t, http.MethodPost, "/besluiten/api/v1/besluitinformatieobjecten", map[string]interface{}{
		"besluit":          besluitURL,
		"informatieobject": docURL,
	}, auth)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	linkURL := decode(t, w)["url"].(string)

	docPath := strings.TrimPrefix(docURL, "http://testserver")
	w = s.do(t, http.MethodDelete, docPath, nil, auth)
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	params := decode(t, w)["invalidParams"].([]interface{})
	assert.Equal(t, "pending-relations", params[0].(map[string]interface{})["code"])

	w = s.do(t, http.MethodDelete, strings.TrimPrefix(linkURL, "http://testserver"), nil, auth)
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
	w = s.do(t, http.MethodDelete, docPath, nil, auth)
	assert.Equal(t, http.StatusNoContent, w.Code, w.Body.String())
}

func TestAdminAPI(t *testing.T) {
	s := newTestServer(t, nil)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/api/me", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, s.do(t, http.MethodGet, "/admin/api/me", nil, s.adminToken(t, "medewerkers")).Code)

	token := s.adminToken(t, "/"+adminGroup)
	w := s.do(t, http.MethodGet, "/admin/api/me", nil, token)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	me := decode(t, w)
	assert.Equal(t, "admin-1", me["sub"])
	assert.Equal(t, "Beheerder", me["name"])

	w = s.do(t, http.MethodGet, "/admin/api/applicaties", nil, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = s.do(t, http.MethodGet, "/admin/api/failed-notifications", nil, token)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodPost, "/admin/api/logout", nil, token).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/admin/api/me", nil, token).Code)
}

func TestAdminAPIDisabledWithoutVerifier(t *testing.T) {
	gin.SetMode(gin.TestMode)
	s, err := New(Deps{
		Config:    testConfig(),
		DB:        testutil.OpenDB(t, Models()...),
		Documents: repository.NewMemoryRepo(),
	})
	require.NoError(t, err)
	w := httptest.NewRecorder()
	s.Engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/api/me", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
