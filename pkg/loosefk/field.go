// Package loosefk implements reference fields that hold either a local object
// or the URL of a resource in another API.
package loosefk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

const DefaultMaxLength = 1000

// ErrNotRoutable is returned when a local object cannot be turned into a URL.
var ErrNotRoutable = errors.New("object has no detail route")

type Kind int

const (
	KindEmpty Kind = iota
	KindLocal
	KindRemote
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindRemote:
		return "remote"
	}
	return "empty"
}

// Reference is either a resolved local object or a remote URL.
type Reference struct {
	Kind  Kind
	Local any
	URL   string
}

func LocalRef(obj any) Reference { return Reference{Kind: KindLocal, Local: obj} }
func RemoteRef(u string) Reference { return Reference{Kind: KindRemote, URL: u} }

func (r Reference) IsZero() bool { return r.Kind == KindEmpty }

type empty struct{}

// Empty is passed to RunValidation when the attribute was absent from the input.
var Empty = empty{}

// Routable objects know their detail route.
type Routable interface {
	RouteName() string
	RouteParams() map[string]string
}

// Resolver loads the local object behind the params of a resolved route.
// A missing object is reported with an error wrapping apierrors.ErrNotFound.
type Resolver interface {
	Resolve(ctx context.Context, params map[string]string) (any, error)
}

type ResolverFunc func(ctx context.Context, params map[string]string) (any, error)

func (f ResolverFunc) Resolve(ctx context.Context, params map[string]string) (any, error) {
	return f(ctx, params)
}

// Field validates and renders a single reference.
type Field struct {
	router       *urls.Router
	routeName    string
	resolver     Resolver
	allowedHosts []string
	maxLength    int
	required     bool
	allowNull    bool
	validators   []Validator
	fetcher      Fetcher
}

type Option func(*Field)

// WithRouteName sets the detail route local URLs must resolve to.
func WithRouteName(name string) Option { return func(f *Field) { f.routeName = name } }

func WithResolver(r Resolver) Option { return func(f *Field) { f.resolver = r } }

// WithAllowedHosts adds hosts that count as local besides the request host.
// A leading dot matches the domain and every subdomain.
func WithAllowedHosts(hosts ...string) Option {
	return func(f *Field) { f.allowedHosts = append(f.allowedHosts, hosts...) }
}

func WithMaxLength(n int) Option { return func(f *Field) { f.maxLength = n } }

func Optional() Option { return func(f *Field) { f.required = false } }

func AllowNull() Option { return func(f *Field) { f.allowNull = true } }

// WithValidators replaces the default validator list.
func WithValidators(vs ...Validator) Option {
	return func(f *Field) { f.validators = append([]Validator{}, vs...) }
}

// WithFetcher is used by the default validator to check that remote URLs exist.
func WithFetcher(fe Fetcher) Option { return func(f *Field) { f.fetcher = fe } }

func New(router *urls.Router, opts ...Option) *Field {
	f := &Field{router: router, maxLength: DefaultMaxLength, required: true}
	for _, o := range opts {
		o(f)
	}
	if f.validators == nil {
		f.validators = []Validator{&FKOrURLValidator{Fetcher: f.fetcher}}
	}
	return f
}

func (f *Field) Validators() []Validator { return f.validators }

func (f *Field) RouteName() string { return f.routeName }

// ToRepresentation renders a reference as a URL. Local objects are reversed relative to req.
func (f *Field) ToRepresentation(ctx context.Context, req *http.Request, ref Reference) (any, error) {
	switch ref.Kind {
	case KindEmpty:
		return nil, nil
	case KindRemote:
		return ref.URL, nil
	}
	obj, ok := ref.Local.(Routable)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrNotRoutable, ref.Local)
	}
	return f.router.Reverse(obj.RouteName(), obj.RouteParams(), req)
}

// RunValidation turns input data into a reference. data is Empty when absent, nil for
// JSON null and a string otherwise.
func (f *Field) RunValidation(ctx context.Context, req *http.Request, data any) (Reference, error) {
	ref, err := f.runValidation(ctx, req, data)
	if err != nil {
		for _, p := range apierrors.InvalidParams(err) {
			metrics.LooseFKRejected.WithLabelValues(p.Code).Inc()
		}
	}
	return ref, err
}

func (f *Field) runValidation(ctx context.Context, req *http.Request, data any) (Reference, error) {
	var raw string
	switch v := data.(type) {
	case empty:
		if f.required {
			return Reference{}, apierrors.New("required", "Dit veld is vereist.")
		}
		return Reference{}, nil
	case nil:
		if !f.allowNull {
			return Reference{}, apierrors.New("null", "Dit veld mag niet leeg zijn.")
		}
		return Reference{}, nil
	case string:
		raw = strings.TrimSpace(v)
	default:
		return Reference{}, apierrors.New("invalid", "Geef een geldige URL op.")
	}

	if raw == "" {
		if f.required {
			return Reference{}, apierrors.New("blank", "Dit veld mag niet leeg zijn.")
		}
		return Reference{}, nil
	}
	if f.maxLength > 0 && len(raw) > f.maxLength {
		return Reference{}, apierrors.New("max_length", fmt.Sprintf("Zorg ervoor dat dit veld niet meer dan %d karakters bevat.", f.maxLength))
	}

	target := Target{Raw: raw}
	parsed, err := url.Parse(raw)
	if err == nil {
		target.URL = parsed
	}

	var ref Reference
	if target.URL != nil && f.isLocal(req, target.URL) {
		obj, err := f.resolveLocal(ctx, target.URL)
		if err != nil {
			return Reference{}, err
		}
		target.Local = true
		target.Object = obj
		ref = Reference{Kind: KindLocal, Local: obj, URL: raw}
	} else {
		ref = RemoteRef(raw)
	}

	for _, v := range f.validators {
		if err := v.Validate(ctx, target); err != nil {
			return Reference{}, err
		}
	}
	return ref, nil
}

func (f *Field) isLocal(req *http.Request, u *url.URL) bool {
	host := u.Host
	if host == "" {
		return false
	}
	if req != nil && strings.EqualFold(host, urls.Host(req)) {
		return true
	}
	hostname := strings.ToLower(u.Hostname())
	for _, allowed := range f.allowedHosts {
		allowed = strings.ToLower(allowed)
		if strings.HasPrefix(allowed, ".") {
			if hostname == allowed[1:] || strings.HasSuffix(hostname, allowed) {
				return true
			}
			continue
		}
		if hostname == allowed || strings.ToLower(host) == allowed {
			return true
		}
	}
	return false
}

func (f *Field) resolveLocal(ctx context.Context, u *url.URL) (any, error) {
	match, err := f.router.Resolve(u.EscapedPath())
	if err != nil || (f.routeName != "" && match.Name != f.routeName) {
		return nil, apierrors.New("no_match", "De URL matcht niet met een bekende resource.")
	}
	if f.resolver == nil {
		return nil, fmt.Errorf("loosefk: no resolver configured for %s", f.routeName)
	}
	obj, err := f.resolver.Resolve(ctx, match.Params)
	if errors.Is(err, apierrors.ErrNotFound) {
		return nil, apierrors.New("does_not_exist", "Het object bestaat niet.")
	}
	if err != nil {
		return nil, err
	}
	return obj, nil
}

// Lookup returns data[key], or Empty when the key is absent.
func Lookup(data map[string]any, key string) any {
	v, ok := data[key]
	if !ok {
		return Empty
	}
	return v
}
