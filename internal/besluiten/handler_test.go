package besluiten

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/api/openapi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/notificaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/testutil"
)

const (
	ztcSpec = "https://ztc.example.nl/api/v1/schema/openapi.yaml"
	drcSpec = "https://drc.example.nl/api/v1/schema/openapi.yaml"

	besluitenPath = "/besluiten/api/v1/besluiten"
	linksPath     = "/besluiten/api/v1/besluitinformatieobjecten"
)

type recordingSender struct {
	mu   sync.Mutex
	msgs []notificaties.Message
}

func (s *recordingSender) Send(ctx context.Context, msg notificaties.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

type apiEnv struct {
	*fixture
	engine *gin.Engine
	sender *recordingSender
}

func newAPI(t *testing.T, withAuth bool) *apiEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := newFixture(t)

	loader := schema.NewLoader(nil)
	for spec, component := range map[string]string{ztcSpec: "catalogi", drcSpec: "documenten"} {
		doc, err := openapi.Document(component)
		require.NoError(t, err)
		loader.Register(spec, doc)
	}

	sender := &recordingSender{}
	engine := gin.New()
	g := engine.Group("/besluiten/api/v1")
	guard := autorisaties.Guard(autorisaties.AllowAll)
	if withAuth {
		g.Use(middleware.AuthMiddleware(tokens.NewVerifier(f.auts.Store(), 0)))
		guard = f.auts.RequireScope
	}
	RegisterRoutes(g, Config{
		Router:     f.router,
		Service:    f.svc,
		Catalogi:   f.cat,
		Documenten: f.repo,
		Notifier:   notificaties.NewNotifier(sender, notificaties.NewMemoryFailedStore()),
		Guard:      guard,
		ZTCSpecURL: ztcSpec,
		DRCSpecURL: drcSpec,
		Fetcher:    f.fetcher,
		Loader:     loader,
	})
	return &apiEnv{fixture: f, engine: engine, sender: sender}
}

func (e *apiEnv) do(t *testing.T, method, target string, body interface{}, header string) *httptest.ResponseRecorder {
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
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func decodeList(t *testing.T, w *httptest.ResponseRecorder) []map[string]interface{} {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var out []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func invalidParam(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
	params := decode(t, w)["invalidParams"].([]interface{})
	require.NotEmpty(t, params)
	p := params[0].(map[string]interface{})
	return p["name"].(string), p["code"].(string)
}

func besluitBody(besluittype string) map[string]interface{} {
	return map[string]interface{}{
		"verantwoordelijkeOrganisatie": "517439943",
		"identificatie":                "123123",
		"besluittype":                  besluittype,
		"zaak":                         "https://zrc.example.nl/api/v1/zaken/1",
		"datum":                        "2018-09-06",
		"toelichting":                  "Vergunning verleend.",
		"ingangsdatum":                 "2018-10-01",
		"vervaldatum":                  "2018-11-01",
		"vervalreden":                  VervalredenTijdelijk,
	}
}

func path(u string) string { return strings.TrimPrefix(u, "http://testserver") }

func TestBesluitWithDocument(t *testing.T) {
	e := newAPI(t, false)
	btURL := e.url(t, catalogi.RouteBesluitType, e.bt.UUID)

	w := e.do(t, http.MethodPost, besluitenPath, besluitBody(btURL), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	besluit := decode(t, w)
	besluitURL := besluit["url"].(string)
	assert.Equal(t, btURL, besluit["besluittype"])
	assert.Equal(t, "123123", besluit["identificatie"])
	assert.Equal(t, "2018-11-01", besluit["vervaldatum"])
	assert.Nil(t, besluit["publicatiedatum"])

	doc := e.document(t, e.iot)
	docURL := e.url(t, documenten.RouteEnkelvoudigInformatieObject, doc.UUID)
	w = e.do(t, http.MethodPost, linksPath, map[string]interface{}{
		"besluit":          besluitURL,
		"informatieobject": docURL,
	}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := decode(t, w)
	assert.Equal(t, docURL, link["informatieobject"])
	assert.Equal(t, besluitURL, link["besluit"])
	linkURL := link["url"].(string)

	next := doc.Clone()
	next.Titel = "tweede versie"
	require.NoError(t, e.docs.Update(context.Background(), next, nil))

	w = e.do(t, http.MethodGet, path(linkURL), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, docURL, decode(t, w)["informatieobject"], "links follow the latest version")

	assert.Len(t, decodeList(t, e.do(t, http.MethodGet, linksPath+"?besluit="+besluitURL, nil, "")), 1)
	assert.Len(t, decodeList(t, e.do(t, http.MethodGet, linksPath+"?informatieobject="+docURL, nil, "")), 1)
	other := e.document(t, e.iot)
	otherURL := e.url(t, documenten.RouteEnkelvoudigInformatieObject, other.UUID)
	assert.Empty(t, decodeList(t, e.do(t, http.MethodGet, linksPath+"?informatieobject="+otherURL, nil, "")))

	w = e.do(t, http.MethodDelete, path(besluitURL), nil, "")
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, path(linkURL), nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	require.Len(t, e.sender.msgs, 3)
	assert.Equal(t, "besluit", e.sender.msgs[0].Resource)
	assert.Equal(t, "besluitinformatieobject", e.sender.msgs[1].Resource)
	assert.Equal(t, besluitURL, e.sender.msgs[1].HoofdObject)
	assert.Equal(t, notificaties.ActieDestroy, e.sender.msgs[2].Actie)
	assert.Equal(t, "besluiten", e.sender.msgs[2].Kanaal)
	assert.Equal(t, map[string]string{
		"verantwoordelijkeOrganisatie": "517439943",
		"besluittype":                  btURL,
	}, e.sender.msgs[0].Kenmerken)
}

func TestCreateBesluitBesluittype(t *testing.T) {
	e := newAPI(t, false)

	name, code := invalidParam(t, e.do(t, http.MethodPost, besluitenPath,
		besluitBody("http://testserver/"+strings.Repeat("x", 1000)), ""))
	assert.Equal(t, "besluittype", name)
	assert.Equal(t, "max_length", code)

	_, code = invalidParam(t, e.do(t, http.MethodPost, besluitenPath, besluitBody("abcd"), ""))
	assert.Equal(t, "bad-url", code)

	concept := &catalogi.BesluitType{
		CatalogusUUID: e.bt.CatalogusUUID,
		Omschrijving:  "Concept",
		Geldigheid:    catalogi.Geldigheid{BeginGeldigheid: "2018-01-01"},
	}
	require.NoError(t, e.cat.CreateBesluitType(context.Background(), concept))
	_, code = invalidParam(t, e.do(t, http.MethodPost, besluitenPath,
		besluitBody(e.url(t, catalogi.RouteBesluitType, concept.UUID)), ""))
	assert.Equal(t, "not-published", code)

	catalogus := "https://externe.catalogus.nl/api/v1/catalogussen/1c8e36be-338c-4c07-ac5e-1adf55bec04a"
	remote := "https://externe.catalogus.nl/api/v1/besluittypen/b71f72ef-198d-44d8-af64-ae1932df830a"
	invalid := "https://externe.catalogus.nl/api/v1/besluittypen/2"
	e.fetcher.On("Fetch", mock.Anything, remote).Return(map[string]any{
		"url":                   remote,
		"catalogus":             catalogus,
		"publicatieIndicatie":   false,
		"informatieobjecttypen": []any{},
		"beginGeldigheid":       "2018-01-01",
		"eindeGeldigheid":       nil,
		"concept":               false,
	}, nil)
	e.fetcher.On("Fetch", mock.Anything, invalid).Return(map[string]any{
		"url":             invalid,
		"catalogus":       catalogus,
		"beginGeldigheid": "2018-01-01",
	}, nil)

	_, code = invalidParam(t, e.do(t, http.MethodPost, besluitenPath, besluitBody(invalid), ""))
	assert.Equal(t, "invalid-resource", code)

	w := e.do(t, http.MethodPost, besluitenPath, besluitBody(remote), "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, remote, decode(t, w)["besluittype"])
}

func TestCreateLinkValidation(t *testing.T) {
	e := newAPI(t, false)
	b := e.besluit(t)
	besluitURL := e.url(t, RouteBesluit, b.UUID)

	name, code := invalidParam(t, e.do(t, http.MethodPost, linksPath, map[string]interface{}{"besluit": besluitURL}, ""))
	assert.Equal(t, "informatieobject", name)
	assert.Equal(t, "required", code)

	wrongType := e.document(t, e.other)
	name, code = invalidParam(t, e.do(t, http.MethodPost, linksPath, map[string]interface{}{
		"besluit":          besluitURL,
		"informatieobject": e.url(t, documenten.RouteEnkelvoudigInformatieObject, wrongType.UUID),
	}, ""))
	assert.Equal(t, "nonFieldErrors", name)
	assert.Equal(t, "missing-besluittype-informatieobjecttype-relation", code)

	name, code = invalidParam(t, e.do(t, http.MethodPost, linksPath, map[string]interface{}{
		"besluit":          "https://brc.example.nl/api/v1/besluiten/1",
		"informatieobject": e.url(t, documenten.RouteEnkelvoudigInformatieObject, wrongType.UUID),
	}, ""))
	assert.Equal(t, "besluit", name)
	assert.Equal(t, "no_match", code)

	name, code = invalidParam(t, e.do(t, http.MethodPost, linksPath, map[string]interface{}{
		"besluit":          besluitURL,
		"informatieobject": "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/onbekend",
	}, ""))
	assert.Equal(t, "informatieobject", name)
	assert.Equal(t, "does_not_exist", code)

	doc := e.document(t, e.iot)
	body := map[string]interface{}{
		"besluit":          besluitURL,
		"informatieobject": e.url(t, documenten.RouteEnkelvoudigInformatieObject, doc.UUID),
	}
	require.Equal(t, http.StatusCreated, e.do(t, http.MethodPost, linksPath, body, "").Code)
	name, code = invalidParam(t, e.do(t, http.MethodPost, linksPath, body, ""))
	assert.Equal(t, "nonFieldErrors", name)
	assert.Equal(t, "unique", code)
}

func TestBesluitAutorisaties(t *testing.T) {
	e := newAPI(t, true)
	btURL := e.url(t, catalogi.RouteBesluitType, e.bt.UUID)
	header := testutil.Auth(t, e.auts, autorisaties.Autorisatie{
		Component:   autorisaties.ComponentBRC,
		Scopes:      []string{autorisaties.ScopeBesluitenLezen},
		BesluitType: btURL,
	})

	visible := e.besluit(t)
	hidden := &Besluit{
		VerantwoordelijkeOrganisatie: "517439943",
		BesluitType:                  "https://ztc.example.nl/api/v1/besluittypen/1",
		Datum:                        "2018-09-06",
		Ingangsdatum:                 "2018-10-01",
	}
	require.NoError(t, e.svc.CreateBesluit(context.Background(), hidden))

	list := decodeList(t, e.do(t, http.MethodGet, besluitenPath, nil, header))
	require.Len(t, list, 1)
	assert.Equal(t, e.url(t, RouteBesluit, visible.UUID), list[0]["url"])

	w := e.do(t, http.MethodGet, besluitenPath+"/"+hidden.UUID, nil, header)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, besluitenPath, besluitBody(btURL), header)
	assert.Equal(t, http.StatusForbidden, w.Code, "no aanmaken scope")

	w = e.do(t, http.MethodGet, besluitenPath, nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
