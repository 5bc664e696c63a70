// Package remote fetches resources from other ZGW APIs.
package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/tokens"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/metrics"
)

// Credentials are used for every URL below APIRoot.
type Credentials struct {
	APIRoot  string
	ClientID string
	Secret   string
}

type Client struct {
	http     *http.Client
	creds    []Credentials
	cache    Cache
	cacheTTL time.Duration
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithCredentials(creds ...Credentials) Option {
	return func(c *Client) { c.creds = append(c.creds, creds...) }
}

func WithCache(cache Cache, ttl time.Duration) Option {
	return func(c *Client) { c.cache, c.cacheTTL = cache, ttl }
}

func NewClient(opts ...Option) *Client {
	c := &Client{http: &http.Client{Timeout: 10 * time.Second}}
	for _, o := range opts {
		o(c)
	}
	return c
}

// ClearCache drops all cached documents.
func (c *Client) ClearCache(ctx context.Context) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Clear(ctx)
}

func badURL(raw, reason string) *apierrors.ValidationError {
	return apierrors.New("bad-url", fmt.Sprintf("De URL %s kon niet worden opgehaald: %s", raw, reason))
}

// Get retrieves raw bytes. Failures to reach the URL are reported as bad-url.
func (c *Client) Get(ctx context.Context, raw string) ([]byte, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, badURL(raw, "ongeldige URL")
	}
	if c.cache != nil {
		if b, ok, err := c.cache.Get(ctx, raw); err == nil && ok {
			metrics.RemoteFetches.WithLabelValues("cached").Inc()
			return b, nil
		} else if err != nil {
			logger.Warnf("remote cache get %s: %v", raw, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return nil, badURL(raw, err.Error())
	}
	req.Header.Set("Accept", "application/json")
	if cred, ok := c.credentialsFor(raw); ok {
		header, err := tokens.AuthorizationHeader(cred.ClientID, cred.Secret, tokens.Options{})
		if err != nil {
			return nil, fmt.Errorf("remote: sign token for %s: %w", cred.APIRoot, err)
		}
		req.Header.Set("Authorization", header)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RemoteFetches.WithLabelValues("error").Inc()
		return nil, badURL(raw, err.Error())
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.RemoteFetches.WithLabelValues("error").Inc()
		return nil, badURL(raw, fmt.Sprintf("status %d", resp.StatusCode))
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.RemoteFetches.WithLabelValues("error").Inc()
		return nil, badURL(raw, err.Error())
	}
	metrics.RemoteFetches.WithLabelValues("ok").Inc()

	if c.cache != nil {
		if err := c.cache.Set(ctx, raw, body, c.cacheTTL); err != nil {
			logger.Warnf("remote cache set %s: %v", raw, err)
		}
	}
	return body, nil
}

// Fetch retrieves a JSON object. A body that is not a JSON object is invalid-resource.
func (c *Client) Fetch(ctx context.Context, raw string) (map[string]any, error) {
	body, err := c.Get(ctx, raw)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, apierrors.New("invalid-resource", fmt.Sprintf("De URL %s verwijst niet naar een geldige resource.", raw))
	}
	return out, nil
}

func (c *Client) credentialsFor(raw string) (Credentials, bool) {
	var best Credentials
	found := false
	for _, cr := range c.creds {
		if strings.HasPrefix(raw, cr.APIRoot) && len(cr.APIRoot) > len(best.APIRoot) {
			best, found = cr, true
		}
	}
	return best, found
}
