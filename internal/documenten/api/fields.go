// Package api holds the serializer fields other components use to refer to documents.
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

// ResourceName is the schema component remote documents are validated against.
const ResourceName = "EnkelvoudigInformatieObject"

// FieldConfig is what the documents field needs besides the router and the store.
type FieldConfig struct {
	// SpecURL is the OpenAPI document of the Documenten API (DRC_API_SPEC).
	SpecURL      string
	Fetcher      loosefk.Fetcher
	Loader       *schema.Loader
	AllowedHosts []string
}

// EnkelvoudigInformatieObjectField refers to a document, either a local one or a
// document in another Documenten API. Local references are stored as the
// documenten.Canonical and rendered as the URL of its latest version.
type EnkelvoudigInformatieObjectField struct {
	*loosefk.Field
	store  documenten.Store
	router *urls.Router
}

// NewEnkelvoudigInformatieObjectField builds the field with a single validator, the
// schema check of remote documents against cfg.SpecURL.
func NewEnkelvoudigInformatieObjectField(router *urls.Router, store documenten.Store, cfg FieldConfig, opts ...loosefk.Option) *EnkelvoudigInformatieObjectField {
	resolver := loosefk.ResolverFunc(func(ctx context.Context, params map[string]string) (any, error) {
		return store.Get(ctx, params["uuid"], 0)
	})
	all := append([]loosefk.Option{}, opts...)
	all = append(all,
		loosefk.WithRouteName(documenten.RouteEnkelvoudigInformatieObject),
		loosefk.WithResolver(resolver),
		loosefk.WithAllowedHosts(cfg.AllowedHosts...),
		loosefk.WithValidators(schema.NewResourceValidator(ResourceName, cfg.SpecURL, cfg.Fetcher, cfg.Loader)),
	)
	return &EnkelvoudigInformatieObjectField{
		Field:  loosefk.New(router, all...),
		store:  store,
		router: router,
	}
}

// ToRepresentation renders a canonical as the URL of its latest version. Other
// references are rendered by the generic field.
func (f *EnkelvoudigInformatieObjectField) ToRepresentation(ctx context.Context, req *http.Request, ref loosefk.Reference) (any, error) {
	if ref.Kind == loosefk.KindLocal {
		if c, ok := ref.Local.(*documenten.Canonical); ok {
			latest, err := f.store.LatestVersion(ctx, c.ID)
			if err != nil {
				return nil, fmt.Errorf("latest version of canonical %s: %w", c.ID, err)
			}
			return f.router.Reverse(latest.RouteName(), latest.RouteParams(), req)
		}
	}
	return f.Field.ToRepresentation(ctx, req, ref)
}

// RunValidation validates data like the generic field and replaces a stored local
// version by its canonical.
func (f *EnkelvoudigInformatieObjectField) RunValidation(ctx context.Context, req *http.Request, data any) (loosefk.Reference, error) {
	ref, err := f.Field.RunValidation(ctx, req, data)
	if err != nil {
		return ref, err
	}
	if e, ok := ref.Local.(*documenten.EnkelvoudigInformatieObject); ok && e.PK != "" {
		c, err := f.store.GetCanonical(ctx, e.CanonicalID)
		if err != nil {
			return loosefk.Reference{}, fmt.Errorf("canonical of %s: %w", e.UUID, err)
		}
		ref.Local = c
	}
	return ref, nil
}
