package accounts

import (
	"context"
	"errors"
)

// ErrNoSubject is returned for claims without a "sub".
var ErrNoSubject = errors.New("accounts: claims have no subject")

// Service encapsulates admin account logic
type Service struct {
	repo Repository
}

func NewService(r Repository) *Service {
	return &Service{repo: r}
}

// UpsertFromClaims creates or updates an account using an OIDC claims map
func (s *Service) UpsertFromClaims(ctx context.Context, claims map[string]interface{}) (*Account, error) {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrNoSubject
	}
	a := &Account{Sub: sub, Groups: groups(claims["groups"])}
	a.Username, _ = claims["preferred_username"].(string)
	a.Email, _ = claims["email"].(string)
	a.Name, _ = claims["name"].(string)
	return s.repo.UpsertBySub(ctx, a)
}

func (s *Service) GetBySub(ctx context.Context, sub string) (*Account, error) {
	return s.repo.GetBySub(ctx, sub)
}

func (s *Service) List(ctx context.Context) ([]*Account, error) {
	return s.repo.List(ctx)
}

func groups(raw interface{}) []string {
	switch gs := raw.(type) {
	case []string:
		return gs
	case []interface{}:
		out := make([]string, 0, len(gs))
		for _, g := range gs {
			if s, ok := g.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
