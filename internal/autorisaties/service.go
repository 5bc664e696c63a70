package autorisaties

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/vertrouwelijkheid"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/middleware"
)

// Grant is what a client may do on one component.
type Grant struct {
	All          bool
	Autorisaties []Autorisatie
}

func (g *Grant) HasScope(scope string) bool {
	if g.All {
		return true
	}
	for _, a := range g.Autorisaties {
		if a.HasScope(scope) {
			return true
		}
	}
	return false
}

// Allows reports whether an object of typeURL with the given vertrouwelijkheidaanduiding
// may be accessed with scope. An empty vertrouwelijkheid skips that check.
func (g *Grant) Allows(scope, typeURL, va string) bool {
	if g.All {
		return true
	}
	for _, a := range g.Autorisaties {
		if !a.HasScope(scope) || a.TypeURL() != typeURL {
			continue
		}
		if va == "" || a.MaxVertrouwelijkheidaanduiding == "" || vertrouwelijkheid.AtMost(va, a.MaxVertrouwelijkheidaanduiding) {
			return true
		}
	}
	return false
}

// TypeSource lists the absolute URLs of all types of a component.
type TypeSource interface {
	TypeURLs(ctx context.Context, component string) ([]string, error)
}

type Service struct {
	store *Store
}

func NewService(store *Store) *Service { return &Service{store: store} }

func (s *Service) Store() *Store { return s.store }

// Grant collects the autorisaties of clientID for component.
func (s *Service) Grant(ctx context.Context, clientID, component string) (*Grant, error) {
	app, err := s.store.ApplicatieForClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	g := &Grant{All: app.HeeftAlleAutorisaties}
	for _, a := range app.Autorisaties {
		if a.Component == component {
			g.Autorisaties = append(g.Autorisaties, a)
		}
	}
	return g, nil
}

// CreateApplicatie stores an applicatie with its secret and autorisaties.
func (s *Service) CreateApplicatie(ctx context.Context, app *Applicatie, secret string) error {
	if app.UUID == "" {
		app.UUID = uuid.NewString()
	}
	if len(app.ClientIDs) == 0 {
		return apierrors.Field("clientIds", apierrors.New("required", "Dit veld is vereist."))
	}
	for i := range app.Autorisaties {
		a := app.Autorisaties[i]
		if a.MaxVertrouwelijkheidaanduiding != "" && !vertrouwelijkheid.Valid(a.MaxVertrouwelijkheidaanduiding) {
			return apierrors.Field(fmt.Sprintf("autorisaties.%d.maxVertrouwelijkheidaanduiding", i),
				apierrors.New("invalid_choice", "Ongeldige vertrouwelijkheidaanduiding."))
		}
	}
	if err := s.store.CreateApplicatie(ctx, app); err != nil {
		return err
	}
	if secret != "" {
		for _, id := range app.ClientIDs {
			if err := s.store.SetSecret(ctx, id, secret); err != nil {
				return err
			}
		}
	}
	return nil
}

type syncKey struct {
	applicatie, component, url string
}

// Sync brings the Autorisaties of every applicatie with an AutorisatieSpec in line
// with the current set of types. Autorisaties that differ from their spec are removed,
// missing ones are added and nothing is added twice.
func (s *Service) Sync(ctx context.Context, types TypeSource) error {
	specs, err := s.store.ListSpecs(ctx)
	if err != nil {
		return err
	}
	var (
		remove []uint
		add    []Autorisatie
		keep   = map[syncKey]bool{}
	)
	for _, spec := range specs {
		existing, err := s.store.autorisatiesFor(ctx, spec.ApplicatieUUID, spec.Component)
		if err != nil {
			return err
		}
		for _, a := range existing {
			if a.MaxVertrouwelijkheidaanduiding != spec.MaxVertrouwelijkheidaanduiding || !sameScopes(a.Scopes, spec.Scopes) {
				remove = append(remove, a.ID)
				continue
			}
			keep[syncKey{spec.ApplicatieUUID, spec.Component, a.TypeURL()}] = true
		}

		typeURLs, err := types.TypeURLs(ctx, spec.Component)
		if err != nil {
			return fmt.Errorf("types for %s: %w", spec.Component, err)
		}
		for _, u := range typeURLs {
			k := syncKey{spec.ApplicatieUUID, spec.Component, u}
			if keep[k] {
				continue
			}
			keep[k] = true
			a := Autorisatie{
				ApplicatieUUID:                 spec.ApplicatieUUID,
				Component:                      spec.Component,
				Scopes:                         append([]string{}, spec.Scopes...),
				MaxVertrouwelijkheidaanduiding: spec.MaxVertrouwelijkheidaanduiding,
			}
			a.setTypeURL(u)
			add = append(add, a)
		}
	}
	if err := s.store.applySync(ctx, remove, add); err != nil {
		return fmt.Errorf("sync autorisaties: %w", err)
	}
	logger.Infof("autorisaties synced: %d removed, %d added", len(remove), len(add))
	return nil
}

func sameScopes(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string{}, a...)
	y := append([]string{}, b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}

const grantKey = "autorisaties.grant"

// RequireScope loads the grant of the calling client for component and rejects the
// request when none of its autorisaties carries scope. Must run after the auth middleware.
func (s *Service) RequireScope(component, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := middleware.ClientID(c)
		if clientID == "" {
			apierrors.Respond(c, fmt.Errorf("%w: no client_id", apierrors.ErrUnauthorized))
			return
		}
		g, err := s.Grant(c.Request.Context(), clientID, component)
		if errors.Is(err, apierrors.ErrNotFound) {
			apierrors.Respond(c, fmt.Errorf("%w: unknown applicatie", apierrors.ErrPermissionDenied))
			return
		}
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if !g.HasScope(scope) {
			apierrors.Respond(c, fmt.Errorf("%w: scope %s", apierrors.ErrPermissionDenied, scope))
			return
		}
		c.Set(grantKey, g)
		c.Next()
	}
}

// GrantFrom returns the grant stored by RequireScope.
func GrantFrom(c *gin.Context) *Grant {
	if v, ok := c.Get(grantKey); ok {
		if g, ok := v.(*Grant); ok {
			return g
		}
	}
	return &Grant{}
}

// Guard builds a middleware requiring scope on component. Service.RequireScope is one.
type Guard func(component, scope string) gin.HandlerFunc

// AllowAll is a Guard that lets every request through with a full grant.
func AllowAll(component, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(grantKey, &Grant{All: true})
		c.Next()
	}
}
