package urls

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

var (
	// ErrNoReverseMatch is returned when a route name is unknown or params are missing.
	ErrNoReverseMatch = errors.New("no reverse match")
	// ErrNoMatch is returned when a path does not match any registered route.
	ErrNoMatch = errors.New("path does not match a route")
)

// Match is the result of resolving a path.
type Match struct {
	Name   string
	Params map[string]string
}

type route struct {
	name     string
	pattern  string
	segments []string
}

// Router keeps named gin-style patterns ("/x/:uuid") so URLs can be built from a
// name and resolved back to a name.
type Router struct {
	mu      sync.RWMutex
	routes  map[string]*route
	ordered []*route
	baseURL string
}

func NewRouter(baseURL string) *Router {
	return &Router{routes: map[string]*route{}, baseURL: strings.TrimRight(baseURL, "/")}
}

// Register adds a named pattern. Registering a name twice replaces the pattern.
func (r *Router) Register(name, pattern string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := &route{name: name, pattern: pattern, segments: split(pattern)}
	if old, ok := r.routes[name]; ok {
		for i, o := range r.ordered {
			if o == old {
				r.ordered[i] = rt
			}
		}
	} else {
		r.ordered = append(r.ordered, rt)
	}
	r.routes[name] = rt
}

// Handle registers the named route and mounts the handlers on g.
func (r *Router) Handle(g *gin.RouterGroup, method, name, relative string, handlers ...gin.HandlerFunc) {
	full := joinPaths(g.BasePath(), relative)
	r.Register(name, full)
	g.Handle(method, relative, handlers...)
}

// Path returns the path for a named route.
func (r *Router) Path(name string, params map[string]string) (string, error) {
	r.mu.RLock()
	rt, ok := r.routes[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("%w: unknown route %q", ErrNoReverseMatch, name)
	}
	parts := make([]string, 0, len(rt.segments))
	for _, seg := range rt.segments {
		if strings.HasPrefix(seg, ":") {
			v, ok := params[seg[1:]]
			if !ok || v == "" {
				return "", fmt.Errorf("%w: %s requires %s", ErrNoReverseMatch, name, seg[1:])
			}
			parts = append(parts, url.PathEscape(v))
			continue
		}
		parts = append(parts, seg)
	}
	return "/" + strings.Join(parts, "/"), nil
}

// Reverse builds an absolute URL for a named route. Scheme and host are taken from req;
// without a request the configured base URL is used.
func (r *Router) Reverse(name string, params map[string]string, req *http.Request) (string, error) {
	p, err := r.Path(name, params)
	if err != nil {
		return "", err
	}
	if req == nil {
		return r.baseURL + p, nil
	}
	return BuildAbsoluteURL(req, p), nil
}

// Resolve maps an escaped path (url.URL.EscapedPath) back onto a registered route.
// Parameters are unescaped once.
func (r *Router) Resolve(p string) (Match, error) {
	segs := split(p)
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, rt := range r.ordered {
		if params, ok := rt.match(segs); ok {
			return Match{Name: rt.name, Params: params}, nil
		}
	}
	return Match{}, fmt.Errorf("%w: %s", ErrNoMatch, p)
}

func (rt *route) match(segs []string) (map[string]string, bool) {
	if len(segs) != len(rt.segments) {
		return nil, false
	}
	params := map[string]string{}
	for i, seg := range rt.segments {
		if strings.HasPrefix(seg, ":") {
			v, err := url.PathUnescape(segs[i])
			if err != nil || v == "" {
				return nil, false
			}
			params[seg[1:]] = v
			continue
		}
		if seg != segs[i] {
			return nil, false
		}
	}
	return params, true
}

// BuildAbsoluteURL prefixes path with the scheme and host the client used.
func BuildAbsoluteURL(req *http.Request, p string) string {
	return Scheme(req) + "://" + Host(req) + p
}

func Scheme(req *http.Request) string {
	if proto := req.Header.Get("X-Forwarded-Proto"); proto != "" {
		return strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	if req.TLS != nil {
		return "https"
	}
	return "http"
}

func Host(req *http.Request) string {
	if h := req.Header.Get("X-Forwarded-Host"); h != "" {
		return strings.TrimSpace(strings.Split(h, ",")[0])
	}
	return req.Host
}

func split(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func joinPaths(base, relative string) string {
	if relative == "" {
		return base
	}
	out := path.Join(base, relative)
	if strings.HasSuffix(relative, "/") && !strings.HasSuffix(out, "/") {
		out += "/"
	}
	return out
}
