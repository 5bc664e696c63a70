package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/api/openapi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/repository"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

const drcSpec = "https://drc.example.nl/api/v1/schema/openapi.yaml"

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (map[string]any, error) {
	args := m.Called(ctx, rawURL)
	if v := args.Get(0); v != nil {
		return v.(map[string]any), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGetter struct{ mock.Mock }

func (m *mockGetter) Get(ctx context.Context, url string) ([]byte, error) {
	args := m.Called(ctx, url)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

type fixture struct {
	field   *EnkelvoudigInformatieObjectField
	store   *repository.MemoryRepo
	fetcher *mockFetcher
	getter  *mockGetter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	doc, err := openapi.Document("documenten")
	require.NoError(t, err)
	getter := &mockGetter{}
	getter.On("Get", mock.Anything, drcSpec).Return(doc, nil).Maybe()

	router := urls.NewRouter("http://testserver")
	router.Register(documenten.RouteEnkelvoudigInformatieObject, "/documenten/api/v1/enkelvoudiginformatieobjecten/:uuid")
	router.Register("besluit-detail", "/besluiten/api/v1/besluiten/:uuid")

	store := repository.NewMemoryRepo()
	fetcher := &mockFetcher{}
	field := NewEnkelvoudigInformatieObjectField(router, store, FieldConfig{
		SpecURL: drcSpec,
		Fetcher: fetcher,
		Loader:  schema.NewLoader(getter),
	})
	return &fixture{field: field, store: store, fetcher: fetcher, getter: getter}
}

func (f *fixture) version(t *testing.T, c *documenten.Canonical, id string, versie int) *documenten.EnkelvoudigInformatieObject {
	t.Helper()
	e := &documenten.EnkelvoudigInformatieObject{CanonicalID: c.ID, UUID: id, Versie: versie, Titel: "v"}
	require.NoError(t, f.store.AddVersion(context.Background(), e))
	return e
}

func request() *http.Request {
	return httptest.NewRequest(http.MethodGet, "http://testserver/besluiten/api/v1/besluitinformatieobjecten", nil)
}

func TestSingleResourceValidator(t *testing.T) {
	f := newFixture(t)
	validators := f.field.Validators()
	require.Len(t, validators, 1)
	v, ok := validators[0].(*schema.ResourceValidator)
	require.True(t, ok, "got %T", validators[0])
	assert.Equal(t, "EnkelvoudigInformatieObject", v.Resource)
	assert.Equal(t, drcSpec, v.SpecURL)
	assert.Equal(t, documenten.RouteEnkelvoudigInformatieObject, f.field.RouteName())
}

func TestToRepresentationLatestVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.store.CreateCanonical(ctx)
	require.NoError(t, err)
	f.version(t, c, "3fa1b2c4-0000-4000-8000-000000000001", 1)
	f.version(t, c, "3fa1b2c4-0000-4000-8000-000000000001", 2)

	out, err := f.field.ToRepresentation(ctx, request(), loosefk.LocalRef(c))
	require.NoError(t, err)
	assert.Equal(t, "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/3fa1b2c4-0000-4000-8000-000000000001", out)
}

func TestToRepresentationNoVersions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.store.CreateCanonical(ctx)
	require.NoError(t, err)

	out, err := f.field.ToRepresentation(ctx, request(), loosefk.LocalRef(c))
	assert.ErrorIs(t, err, documenten.ErrNoVersions)
	assert.Nil(t, out)
	assert.False(t, apierrors.IsValidation(err), "a missing version is not a user error")
}

func TestToRepresentationDelegates(t *testing.T) {
	f := newFixture(t)
	out, err := f.field.ToRepresentation(context.Background(), request(), loosefk.RemoteRef("https://drc.example.nl/api/v1/enkelvoudiginformatieobjecten/1"))
	require.NoError(t, err)
	assert.Equal(t, "https://drc.example.nl/api/v1/enkelvoudiginformatieobjecten/1", out)

	out, err = f.field.ToRepresentation(context.Background(), request(), loosefk.Reference{})
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestRunValidationLocalResolvesCanonical(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c, err := f.store.CreateCanonical(ctx)
	require.NoError(t, err)
	e := f.version(t, c, "9b3c1a6e-0000-4000-8000-000000000002", 1)

	input := "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/" + e.UUID
	ref, err := f.field.RunValidation(ctx, request(), input)
	require.NoError(t, err)
	assert.Equal(t, loosefk.KindLocal, ref.Kind)
	got, ok := ref.Local.(*documenten.Canonical)
	require.True(t, ok, "got %T", ref.Local)
	assert.Equal(t, c.ID, got.ID)

	// round trip
	out, err := f.field.ToRepresentation(ctx, request(), ref)
	require.NoError(t, err)
	assert.Equal(t, input, out)

	f.fetcher.AssertNotCalled(t, "Fetch", mock.Anything, mock.Anything)
}

func TestRunValidationLocalErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.field.RunValidation(ctx, request(), "http://testserver/documenten/api/v1/enkelvoudiginformatieobjecten/missing")
	params := apierrors.InvalidParams(err)
	require.Len(t, params, 1)
	assert.Equal(t, "does_not_exist", params[0].Code)

	_, err = f.field.RunValidation(ctx, request(), "http://testserver/besluiten/api/v1/besluiten/1")
	params = apierrors.InvalidParams(err)
	require.Len(t, params, 1)
	assert.Equal(t, "no_match", params[0].Code)

	_, err = f.field.RunValidation(ctx, request(), loosefk.Empty)
	params = apierrors.InvalidParams(err)
	require.Len(t, params, 1)
	assert.Equal(t, "required", params[0].Code)
}

func TestRunValidationRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	good := "https://drc.example.nl/api/v1/enkelvoudiginformatieobjecten/1"
	bad := "https://drc.example.nl/api/v1/enkelvoudiginformatieobjecten/2"
	f.fetcher.On("Fetch", mock.Anything, good).Return(map[string]any{
		"url":                  good,
		"bronorganisatie":      "517439943",
		"creatiedatum":         "2019-01-01",
		"titel":                "Notulen",
		"auteur":               "bob",
		"taal":                 "nld",
		"informatieobjecttype": "https://ztc.example.nl/api/v1/informatieobjecttypen/1",
	}, nil)
	f.fetcher.On("Fetch", mock.Anything, bad).Return(map[string]any{"url": bad}, nil)

	ref, err := f.field.RunValidation(ctx, request(), good)
	require.NoError(t, err)
	assert.Equal(t, loosefk.RemoteRef(good), ref)

	_, err = f.field.RunValidation(ctx, request(), bad)
	params := apierrors.InvalidParams(err)
	require.Len(t, params, 1)
	assert.Equal(t, "invalid-resource", params[0].Code)

	f.fetcher.AssertExpectations(t)
	f.getter.AssertCalled(t, "Get", mock.Anything, drcSpec)
}
