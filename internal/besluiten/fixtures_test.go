package besluiten

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/repository"
	docservice "github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/service"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/storage"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/vertrouwelijkheid"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/testutil"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

type mockFetcher struct{ mock.Mock }

func (m *mockFetcher) Fetch(ctx context.Context, rawURL string) (map[string]any, error) {
	args := m.Called(ctx, rawURL)
	if v := args.Get(0); v != nil {
		return v.(map[string]any), args.Error(1)
	}
	return nil, args.Error(1)
}

var today = time.Date(2018, 9, 6, 12, 8, 0, 0, time.UTC)

type fixture struct {
	router  *urls.Router
	cat     *catalogi.Service
	repo    *repository.MemoryRepo
	docs    *docservice.Service
	svc     *Service
	fetcher *mockFetcher
	auts    *autorisaties.Service

	iot   *catalogi.InformatieObjectType
	other *catalogi.InformatieObjectType
	bt    *catalogi.BesluitType
}

// newFixture sets up a published besluittype accepting iot but not other.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	router := urls.NewRouter("http://testserver")
	router.Register(catalogi.RouteCatalogus, "/catalogi/api/v1/catalogussen/:uuid")
	router.Register(catalogi.RouteInformatieObjectType, "/catalogi/api/v1/informatieobjecttypen/:uuid")
	router.Register(catalogi.RouteBesluitType, "/catalogi/api/v1/besluittypen/:uuid")
	router.Register(documenten.RouteEnkelvoudigInformatieObject, "/documenten/api/v1/enkelvoudiginformatieobjecten/:uuid")
	router.Register(RouteBesluit, "/besluiten/api/v1/besluiten/:uuid")
	router.Register(RouteBesluitInformatieObject, "/besluiten/api/v1/besluitinformatieobjecten/:uuid")

	models := append(catalogi.Models(), Models()...)
	db := testutil.OpenDB(t, append(models, autorisaties.Models()...)...)
	cat := catalogi.NewService(catalogi.NewStore(db), router)

	catalog := &catalogi.Catalogus{Domein: "ABC", RSIN: "000000000", ContactpersoonBeheerNaam: "Ad Alta"}
	require.NoError(t, cat.CreateCatalogus(ctx, catalog))
	newIOT := func(omschrijving string) *catalogi.InformatieObjectType {
		iot := &catalogi.InformatieObjectType{
			CatalogusUUID:               catalog.UUID,
			Omschrijving:                omschrijving,
			Vertrouwelijkheidaanduiding: vertrouwelijkheid.Openbaar,
			Geldigheid:                  catalogi.Geldigheid{BeginGeldigheid: "2018-01-01"},
		}
		require.NoError(t, cat.CreateInformatieObjectType(ctx, iot))
		published, err := cat.PublishInformatieObjectType(ctx, iot.UUID)
		require.NoError(t, err)
		return published
	}
	iot, other := newIOT("Besluitbrief"), newIOT("Notitie")

	bt := &catalogi.BesluitType{
		CatalogusUUID:         catalog.UUID,
		Omschrijving:          "Vergunning",
		InformatieObjectTypen: []string{iot.UUID},
		Geldigheid:            catalogi.Geldigheid{BeginGeldigheid: "2018-01-01"},
	}
	require.NoError(t, cat.CreateBesluitType(ctx, bt))
	bt, err := cat.PublishBesluitType(ctx, bt.UUID)
	require.NoError(t, err)

	repo := repository.NewMemoryRepo()
	fetcher := &mockFetcher{}
	return &fixture{
		router:  router,
		cat:     cat,
		repo:    repo,
		docs:    docservice.New(repo, storage.NewMemoryStorage()),
		svc:     NewService(NewStore(db), cat, repo, router, fetcher, WithClock(func() time.Time { return today })),
		fetcher: fetcher,
		auts:    autorisaties.NewService(autorisaties.NewStore(db)),
		iot:     iot,
		other:   other,
		bt:      bt,
	}
}

func (f *fixture) url(t *testing.T, route, id string) string {
	t.Helper()
	u, err := f.router.Reverse(route, map[string]string{"uuid": id}, nil)
	require.NoError(t, err)
	return u
}

// document creates a local document of the given informatieobjecttype.
func (f *fixture) document(t *testing.T, iot *catalogi.InformatieObjectType) *documenten.EnkelvoudigInformatieObject {
	t.Helper()
	e := &documenten.EnkelvoudigInformatieObject{
		Bronorganisatie:          "517439943",
		CreatieDatum:             "2018-06-27",
		Titel:                    "besluitbrief",
		Auteur:                   "test_auteur",
		Taal:                     "nld",
		InformatieObjectTypeUUID: iot.UUID,
	}
	require.NoError(t, f.docs.Create(context.Background(), e, []byte("inhoud")))
	return e
}

func (f *fixture) besluit(t *testing.T) *Besluit {
	t.Helper()
	b := &Besluit{
		VerantwoordelijkeOrganisatie: "517439943",
		BesluitTypeUUID:              f.bt.UUID,
		Datum:                        "2018-09-06",
		Ingangsdatum:                 "2018-10-01",
	}
	require.NoError(t, f.svc.CreateBesluit(context.Background(), b))
	return b
}

func errCode(t *testing.T, err error) (string, string) {
	t.Helper()
	params := apierrors.InvalidParams(err)
	require.NotEmpty(t, params, "expected validation error, got %v", err)
	return params[0].Name, params[0].Code
}
