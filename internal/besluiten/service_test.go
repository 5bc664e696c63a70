package besluiten

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

func strp(s string) *string { return &s }

func TestCreateBesluitIdentificatie(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, second := f.besluit(t), f.besluit(t)
	assert.Equal(t, "BESLUIT-2018-0000000001", first.Identificatie)
	assert.Equal(t, "BESLUIT-2018-0000000002", second.Identificatie)

	dup := &Besluit{
		Identificatie:                first.Identificatie,
		VerantwoordelijkeOrganisatie: "517439943",
		BesluitTypeUUID:              f.bt.UUID,
		Datum:                        "2018-09-06",
		Ingangsdatum:                 "2018-10-01",
	}
	name, code := errCode(t, f.svc.CreateBesluit(ctx, dup))
	assert.Equal(t, "identificatie", name)
	assert.Equal(t, "identificatie-niet-uniek", code)

	dup.VerantwoordelijkeOrganisatie = "000000000"
	require.NoError(t, f.svc.CreateBesluit(ctx, dup), "identificatie is unique per organisatie")

	dup = &Besluit{
		Identificatie:                "foo 1 2",
		VerantwoordelijkeOrganisatie: "517439943",
		BesluitTypeUUID:              f.bt.UUID,
		Datum:                        "2018-09-06",
		Ingangsdatum:                 "2018-10-01",
	}
	name, code = errCode(t, f.svc.CreateBesluit(ctx, dup))
	assert.Equal(t, "identificatie", name)
	assert.Equal(t, "invalid-identificatie", code)
}

func TestCreateBesluitValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	valid := func() *Besluit {
		return &Besluit{
			VerantwoordelijkeOrganisatie: "517439943",
			BesluitTypeUUID:              f.bt.UUID,
			Datum:                        "2018-09-06",
			Ingangsdatum:                 "2018-10-01",
			Vervaldatum:                  strp("2018-11-01"),
			Vervalreden:                  VervalredenTijdelijk,
		}
	}

	tests := []struct {
		name   string
		modify func(b *Besluit)
		field  string
		code   string
	}{
		{"future datum", func(b *Besluit) { b.Datum = "2018-09-07" }, "datum", "future_not_allowed"},
		{"missing datum", func(b *Besluit) { b.Datum = "" }, "datum", "required"},
		{"bad vervaldatum", func(b *Besluit) { b.Vervaldatum = strp("01-11-2018") }, "vervaldatum", "invalid"},
		{"bad vervalreden", func(b *Besluit) { b.Vervalreden = "vergeten" }, "vervalreden", "invalid"},
		{"bad rsin", func(b *Besluit) { b.VerantwoordelijkeOrganisatie = "123456789" }, "verantwoordelijkeOrganisatie", "invalid"},
		{"missing besluittype", func(b *Besluit) { b.BesluitTypeUUID = "" }, "besluittype", "required"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := valid()
			tc.modify(b)
			name, code := errCode(t, f.svc.CreateBesluit(ctx, b))
			assert.Equal(t, tc.field, name)
			assert.Equal(t, tc.code, code)
		})
	}
	require.NoError(t, f.svc.CreateBesluit(ctx, valid()))
}

func TestLinkDocument(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.besluit(t)
	doc := f.document(t, f.iot)

	link := &BesluitInformatieObject{Canonical: doc.CanonicalID}
	require.NoError(t, f.svc.LinkDocument(ctx, b, link))
	assert.NotEmpty(t, link.UUID)
	assert.Equal(t, b.UUID, link.BesluitUUID)

	name, code := errCode(t, f.svc.LinkDocument(ctx, b, &BesluitInformatieObject{Canonical: doc.CanonicalID}))
	assert.Equal(t, "nonFieldErrors", name)
	assert.Equal(t, "unique", code)

	wrongType := f.document(t, f.other)
	_, code = errCode(t, f.svc.LinkDocument(ctx, b, &BesluitInformatieObject{Canonical: wrongType.CanonicalID}))
	assert.Equal(t, "missing-besluittype-informatieobjecttype-relation", code)

	inUse, err := f.svc.DocumentInUse(ctx, doc.CanonicalID)
	require.NoError(t, err)
	assert.True(t, inUse)
	inUse, err = f.svc.DocumentInUse(ctx, wrongType.CanonicalID)
	require.NoError(t, err)
	assert.False(t, inUse)
}

func TestLinkDocumentRemote(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	iotURL := f.url(t, catalogi.RouteInformatieObjectType, f.iot.UUID)

	remoteDoc := "https://drc.example.nl/api/v1/enkelvoudiginformatieobjecten/1"
	f.fetcher.On("Fetch", mock.Anything, remoteDoc).Return(map[string]any{"informatieobjecttype": iotURL}, nil)
	b := f.besluit(t)
	require.NoError(t, f.svc.LinkDocument(ctx, b, &BesluitInformatieObject{InformatieObject: remoteDoc}))

	remoteType := "https://ztc.example.nl/api/v1/besluittypen/1"
	f.fetcher.On("Fetch", mock.Anything, remoteType).Return(map[string]any{
		"informatieobjecttypen": []any{iotURL},
	}, nil)
	external := &Besluit{
		VerantwoordelijkeOrganisatie: "517439943",
		BesluitType:                  remoteType,
		Datum:                        "2018-09-06",
		Ingangsdatum:                 "2018-10-01",
	}
	require.NoError(t, f.svc.CreateBesluit(ctx, external))
	require.NoError(t, f.svc.LinkDocument(ctx, external, &BesluitInformatieObject{Canonical: f.document(t, f.iot).CanonicalID}))
	_, code := errCode(t, f.svc.LinkDocument(ctx, external, &BesluitInformatieObject{Canonical: f.document(t, f.other).CanonicalID}))
	assert.Equal(t, "missing-besluittype-informatieobjecttype-relation", code)

	btURL, err := f.svc.BesluitTypeURL(external)
	require.NoError(t, err)
	assert.Equal(t, remoteType, btURL)
}

func TestDeleteBesluitRemovesLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.besluit(t)
	doc := f.document(t, f.iot)
	require.NoError(t, f.svc.LinkDocument(ctx, b, &BesluitInformatieObject{Canonical: doc.CanonicalID}))

	deleted, err := f.svc.DeleteBesluit(ctx, b.UUID)
	require.NoError(t, err)
	assert.Equal(t, b.Identificatie, deleted.Identificatie)

	links, err := f.svc.Store().ListLinks(ctx, LinkFilter{Canonical: doc.CanonicalID})
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = f.svc.DeleteBesluit(ctx, b.UUID)
	assert.True(t, errors.Is(err, apierrors.ErrNotFound))
}
