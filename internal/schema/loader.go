// Package schema validates remote resources against the OpenAPI documents of their API.
package schema

import (
	"context"
	"fmt"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
)

// Getter retrieves the raw bytes behind a URL.
type Getter interface {
	Get(ctx context.Context, url string) ([]byte, error)
}

// Loader parses and caches OpenAPI documents by URL.
type Loader struct {
	getter Getter

	mu     sync.Mutex
	docs   map[string]*openapi3.T
	static map[string][]byte
}

func NewLoader(g Getter) *Loader {
	return &Loader{getter: g, docs: map[string]*openapi3.T{}, static: map[string][]byte{}}
}

// Register serves data for specURL without a network round trip.
func (l *Loader) Register(specURL string, data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.static[specURL] = data
	delete(l.docs, specURL)
}

func (l *Loader) Load(ctx context.Context, specURL string) (*openapi3.T, error) {
	l.mu.Lock()
	if doc, ok := l.docs[specURL]; ok {
		l.mu.Unlock()
		return doc, nil
	}
	data, ok := l.static[specURL]
	l.mu.Unlock()

	if !ok {
		if l.getter == nil {
			return nil, fmt.Errorf("schema %s: no getter configured", specURL)
		}
		var err error
		if data, err = l.getter.Get(ctx, specURL); err != nil {
			return nil, fmt.Errorf("schema %s: %w", specURL, err)
		}
	}

	doc, err := openapi3.NewLoader().LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("schema %s: parse: %w", specURL, err)
	}

	l.mu.Lock()
	l.docs[specURL] = doc
	l.mu.Unlock()
	return doc, nil
}

// Clear forgets parsed documents. Registered documents stay registered.
func (l *Loader) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.docs = map[string]*openapi3.T{}
	return nil
}
