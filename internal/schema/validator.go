package schema

import (
	"context"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
)

// ResourceValidator checks that a remote URL points at a Resource as described by
// the OpenAPI document at SpecURL. Local references are resolved elsewhere and skipped.
type ResourceValidator struct {
	Resource string
	SpecURL  string
	fetcher  loosefk.Fetcher
	loader   *Loader
}

func NewResourceValidator(resource, specURL string, fetcher loosefk.Fetcher, loader *Loader) *ResourceValidator {
	return &ResourceValidator{Resource: resource, SpecURL: specURL, fetcher: fetcher, loader: loader}
}

func (v *ResourceValidator) Validate(ctx context.Context, t loosefk.Target) error {
	if t.Local {
		return nil
	}
	if !loosefk.IsHTTPURL(t.URL) {
		return loosefk.BadURL()
	}
	data, err := v.fetcher.Fetch(ctx, t.Raw)
	if err != nil {
		return err
	}

	doc, err := v.loader.Load(ctx, v.SpecURL)
	if err != nil {
		return err
	}
	if doc.Components == nil {
		return fmt.Errorf("schema %s has no component %s", v.SpecURL, v.Resource)
	}
	ref, ok := doc.Components.Schemas[v.Resource]
	if !ok || ref.Value == nil {
		return fmt.Errorf("schema %s has no component %s", v.SpecURL, v.Resource)
	}
	if err := ref.Value.VisitJSON(map[string]interface{}(data), openapi3.VisitAsResponse()); err != nil {
		return apierrors.New("invalid-resource", fmt.Sprintf("De URL %s resource voldoet niet aan het %s schema.", t.Raw, v.Resource))
	}
	return nil
}
