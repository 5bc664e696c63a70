package loosefk

import (
	"context"
	"net/url"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// Target is what validators see: the raw input and, for local references, the resolved object.
type Target struct {
	Raw    string
	URL    *url.URL
	Local  bool
	Object any
}

type Validator interface {
	Validate(ctx context.Context, t Target) error
}

type ValidatorFunc func(ctx context.Context, t Target) error

func (f ValidatorFunc) Validate(ctx context.Context, t Target) error { return f(ctx, t) }

// Fetcher retrieves a remote resource as decoded JSON.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (map[string]any, error)
}

// BadURL is the error for values that are not usable http(s) URLs.
func BadURL() *apierrors.ValidationError {
	return apierrors.New("bad-url", "De URL is ongeldig.")
}

// IsHTTPURL reports whether u is an absolute http or https URL.
func IsHTTPURL(u *url.URL) bool {
	return u != nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// FKOrURLValidator is the default validator: local objects are already resolved,
// remote values must be URLs and, when a Fetcher is set, must be retrievable.
type FKOrURLValidator struct {
	Fetcher Fetcher
}

func (v *FKOrURLValidator) Validate(ctx context.Context, t Target) error {
	if t.Local {
		return nil
	}
	if !IsHTTPURL(t.URL) {
		return BadURL()
	}
	if v.Fetcher == nil {
		return nil
	}
	if _, err := v.Fetcher.Fetch(ctx, t.Raw); err != nil {
		if apierrors.IsValidation(err) {
			return err
		}
		return BadURL()
	}
	return nil
}

// LocalOnly rejects references that do not point at an object of this API.
func LocalOnly() Validator {
	return ValidatorFunc(func(ctx context.Context, t Target) error {
		if t.Local {
			return nil
		}
		return apierrors.New("no_match", "De URL matcht niet met een bekende resource.")
	})
}
