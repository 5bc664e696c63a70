package besluiten

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	docapi "github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/api"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/notificaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

const kanaal = "besluiten"

// Config wires the Besluiten API.
type Config struct {
	Router     *urls.Router
	Service    *Service
	Catalogi   *catalogi.Service
	Documenten documenten.Store
	Notifier   *notificaties.Notifier
	Guard      autorisaties.Guard
	// ZTCSpecURL and DRCSpecURL are the documents remote besluittypen and
	// informatieobjecten are checked against.
	ZTCSpecURL   string
	DRCSpecURL   string
	Fetcher      loosefk.Fetcher
	Loader       *schema.Loader
	AllowedHosts []string
}

type besluitJSON struct {
	URL                          string  `json:"url"`
	Identificatie                string  `json:"identificatie"`
	VerantwoordelijkeOrganisatie string  `json:"verantwoordelijkeOrganisatie"`
	BesluitType                  string  `json:"besluittype"`
	Zaak                         string  `json:"zaak"`
	Datum                        string  `json:"datum"`
	Toelichting                  string  `json:"toelichting"`
	Bestuursorgaan               string  `json:"bestuursorgaan"`
	Ingangsdatum                 string  `json:"ingangsdatum"`
	Vervaldatum                  *string `json:"vervaldatum"`
	Vervalreden                  string  `json:"vervalreden"`
	Publicatiedatum              *string `json:"publicatiedatum"`
	Verzenddatum                 *string `json:"verzenddatum"`
	UiterlijkeReactiedatum       *string `json:"uiterlijkeReactiedatum"`
}

type besluitInformatieObjectJSON struct {
	URL              string `json:"url"`
	InformatieObject string `json:"informatieobject"`
	Besluit          string `json:"besluit"`
}

type api struct {
	cfg         Config
	svc         *Service
	besluitType *loosefk.Field
	besluit     *loosefk.Field
	document    *docapi.EnkelvoudigInformatieObjectField
}

// RegisterRoutes mounts the Besluiten API on g (normally /besluiten/api/v1).
func RegisterRoutes(g *gin.RouterGroup, cfg Config) {
	svc := cfg.Service
	a := &api{
		cfg: cfg,
		svc: svc,
		besluitType: loosefk.New(cfg.Router,
			loosefk.WithRouteName(catalogi.RouteBesluitType),
			loosefk.WithResolver(cfg.Catalogi.BesluitTypeResolver()),
			loosefk.WithAllowedHosts(cfg.AllowedHosts...),
			loosefk.WithValidators(
				schema.NewResourceValidator("BesluitType", cfg.ZTCSpecURL, cfg.Fetcher, cfg.Loader),
				loosefk.ValidatorFunc(published),
			),
		),
		besluit: loosefk.New(cfg.Router,
			loosefk.WithRouteName(RouteBesluit),
			loosefk.WithResolver(loosefk.ResolverFunc(func(ctx context.Context, params map[string]string) (any, error) {
				return svc.Store().GetBesluit(ctx, params["uuid"])
			})),
			loosefk.WithAllowedHosts(cfg.AllowedHosts...),
			loosefk.WithValidators(loosefk.LocalOnly()),
		),
		document: docapi.NewEnkelvoudigInformatieObjectField(cfg.Router, cfg.Documenten, docapi.FieldConfig{
			SpecURL:      cfg.DRCSpecURL,
			Fetcher:      cfg.Fetcher,
			Loader:       cfg.Loader,
			AllowedHosts: cfg.AllowedHosts,
		}),
	}

	guard := func(scope string) gin.HandlerFunc { return cfg.Guard(autorisaties.ComponentBRC, scope) }
	r := cfg.Router
	r.Handle(g, http.MethodGet, "besluit-list", "/besluiten", guard(autorisaties.ScopeBesluitenLezen), a.listBesluiten)
	r.Handle(g, http.MethodPost, "besluit-create", "/besluiten", guard(autorisaties.ScopeBesluitenAanmaken), a.createBesluit)
	r.Handle(g, http.MethodGet, RouteBesluit, "/besluiten/:uuid", guard(autorisaties.ScopeBesluitenLezen), a.getBesluit)
	g.DELETE("/besluiten/:uuid", guard(autorisaties.ScopeBesluitenVerwijderen), a.deleteBesluit)

	r.Handle(g, http.MethodGet, "besluitinformatieobject-list", "/besluitinformatieobjecten",
		guard(autorisaties.ScopeBesluitenLezen), a.listLinks)
	r.Handle(g, http.MethodPost, "besluitinformatieobject-create", "/besluitinformatieobjecten",
		guard(autorisaties.ScopeBesluitenAanmaken), a.createLink)
	r.Handle(g, http.MethodGet, RouteBesluitInformatieObject, "/besluitinformatieobjecten/:uuid",
		guard(autorisaties.ScopeBesluitenLezen), a.getLink)
	g.DELETE("/besluitinformatieobjecten/:uuid", guard(autorisaties.ScopeBesluitenVerwijderen), a.deleteLink)
}

func published(ctx context.Context, t loosefk.Target) error {
	if !t.Local {
		return nil
	}
	if bt, ok := t.Object.(*catalogi.BesluitType); ok && bt.Concept {
		return apierrors.New("not-published", "Het besluittype is nog niet gepubliceerd.")
	}
	return nil
}

func (a *api) allowed(c *gin.Context, scope string, b *Besluit) (bool, error) {
	u, err := a.svc.BesluitTypeURL(b)
	if err != nil {
		return false, err
	}
	return autorisaties.GrantFrom(c).Allows(scope, u, ""), nil
}

func (a *api) authorize(c *gin.Context, scope string, b *Besluit) bool {
	ok, err := a.allowed(c, scope, b)
	if err != nil {
		apierrors.Respond(c, err)
		return false
	}
	if !ok {
		apierrors.Respond(c, fmt.Errorf("%w: %s on besluit %s", apierrors.ErrPermissionDenied, scope, b.UUID))
		return false
	}
	return true
}

func (a *api) besluitRepr(req *http.Request, b *Besluit) (*besluitJSON, error) {
	u, err := a.cfg.Router.Reverse(b.RouteName(), b.RouteParams(), req)
	if err != nil {
		return nil, err
	}
	bt := b.BesluitType
	if b.BesluitTypeUUID != "" {
		if bt, err = a.cfg.Router.Reverse(catalogi.RouteBesluitType, map[string]string{"uuid": b.BesluitTypeUUID}, req); err != nil {
			return nil, err
		}
	}
	return &besluitJSON{
		URL:                          u,
		Identificatie:                b.Identificatie,
		VerantwoordelijkeOrganisatie: b.VerantwoordelijkeOrganisatie,
		BesluitType:                  bt,
		Zaak:                         b.Zaak,
		Datum:                        b.Datum,
		Toelichting:                  b.Toelichting,
		Bestuursorgaan:               b.Bestuursorgaan,
		Ingangsdatum:                 b.Ingangsdatum,
		Vervaldatum:                  b.Vervaldatum,
		Vervalreden:                  b.Vervalreden,
		Publicatiedatum:              b.Publicatiedatum,
		Verzenddatum:                 b.Verzenddatum,
		UiterlijkeReactiedatum:       b.UiterlijkeReactiedatum,
	}, nil
}

func (a *api) documentRef(l *BesluitInformatieObject) loosefk.Reference {
	if l.Canonical != "" {
		return loosefk.LocalRef(&documenten.Canonical{ID: l.Canonical})
	}
	return loosefk.RemoteRef(l.InformatieObject)
}

func (a *api) linkRepr(c *gin.Context, l *BesluitInformatieObject) (*besluitInformatieObjectJSON, error) {
	u, err := a.cfg.Router.Reverse(l.RouteName(), l.RouteParams(), c.Request)
	if err != nil {
		return nil, err
	}
	besluit, err := a.cfg.Router.Reverse(RouteBesluit, map[string]string{"uuid": l.BesluitUUID}, c.Request)
	if err != nil {
		return nil, err
	}
	io, err := a.document.ToRepresentation(c.Request.Context(), c.Request, a.documentRef(l))
	if err != nil {
		return nil, err
	}
	s, _ := io.(string)
	return &besluitInformatieObjectJSON{URL: u, InformatieObject: s, Besluit: besluit}, nil
}

func (a *api) notify(c *gin.Context, actie, resource, resourceURL string, b *besluitJSON) {
	if a.cfg.Notifier == nil {
		return
	}
	a.cfg.Notifier.Notify(c.Request.Context(), notificaties.Message{
		Kanaal:      kanaal,
		HoofdObject: b.URL,
		Resource:    resource,
		ResourceURL: resourceURL,
		Actie:       actie,
		Kenmerken: map[string]string{
			"verantwoordelijkeOrganisatie": b.VerantwoordelijkeOrganisatie,
			"besluittype":                  b.BesluitType,
		},
	})
}

func (a *api) listBesluiten(c *gin.Context) {
	list, err := a.svc.Store().ListBesluiten(c.Request.Context(), BesluitFilter{
		VerantwoordelijkeOrganisatie: c.Query("verantwoordelijkeOrganisatie"),
		Identificatie:                c.Query("identificatie"),
		Zaak:                         c.Query("zaak"),
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*besluitJSON, 0, len(list))
	for _, b := range list {
		ok, err := a.allowed(c, autorisaties.ScopeBesluitenLezen, b)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if !ok {
			continue
		}
		r, err := a.besluitRepr(c.Request, b)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) createBesluit(c *gin.Context) {
	var req besluitJSON
	raw, err := loosefk.BindJSON(c, &req)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	ref, err := a.besluitType.RunValidation(c.Request.Context(), c.Request, loosefk.Lookup(raw, "besluittype"))
	if err != nil {
		apierrors.Respond(c, apierrors.Field("besluittype", err))
		return
	}
	b := &Besluit{
		Identificatie:                req.Identificatie,
		VerantwoordelijkeOrganisatie: req.VerantwoordelijkeOrganisatie,
		Zaak:                         req.Zaak,
		Datum:                        req.Datum,
		Toelichting:                  req.Toelichting,
		Bestuursorgaan:               req.Bestuursorgaan,
		Ingangsdatum:                 req.Ingangsdatum,
		Vervaldatum:                  req.Vervaldatum,
		Vervalreden:                  req.Vervalreden,
		Publicatiedatum:              req.Publicatiedatum,
		Verzenddatum:                 req.Verzenddatum,
		UiterlijkeReactiedatum:       req.UiterlijkeReactiedatum,
	}
	if bt, ok := ref.Local.(*catalogi.BesluitType); ok {
		b.BesluitTypeUUID = bt.UUID
	} else {
		b.BesluitType = ref.URL
	}
	if !a.authorize(c, autorisaties.ScopeBesluitenAanmaken, b) {
		return
	}
	if err := a.svc.CreateBesluit(c.Request.Context(), b); err != nil {
		apierrors.Respond(c, err)
		return
	}
	r, err := a.besluitRepr(c.Request, b)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.notify(c, notificaties.ActieCreate, "besluit", r.URL, r)
	c.JSON(http.StatusCreated, r)
}

func (a *api) getBesluit(c *gin.Context) {
	b, err := a.svc.Store().GetBesluit(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeBesluitenLezen, b) {
		return
	}
	r, err := a.besluitRepr(c.Request, b)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a *api) deleteBesluit(c *gin.Context) {
	b, err := a.svc.Store().GetBesluit(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeBesluitenVerwijderen, b) {
		return
	}
	r, err := a.besluitRepr(c.Request, b)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if _, err := a.svc.DeleteBesluit(c.Request.Context(), b.UUID); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.notify(c, notificaties.ActieDestroy, "besluit", r.URL, r)
	c.Status(http.StatusNoContent)
}

// linkFilter reads ?besluit=<url>&informatieobject=<url>.
func (a *api) linkFilter(c *gin.Context) (LinkFilter, error) {
	var f LinkFilter
	ctx := c.Request.Context()
	if raw := c.Query("besluit"); raw != "" {
		ref, err := a.besluit.RunValidation(ctx, c.Request, raw)
		if err != nil {
			return f, apierrors.Field("besluit", err)
		}
		f.BesluitUUID = ref.Local.(*Besluit).UUID
	}
	if raw := c.Query("informatieobject"); raw != "" {
		ref, err := a.document.RunValidation(ctx, c.Request, raw)
		if err != nil {
			return f, apierrors.Field("informatieobject", err)
		}
		if canonical, ok := ref.Local.(*documenten.Canonical); ok {
			f.Canonical = canonical.ID
		} else {
			f.InformatieObject = ref.URL
		}
	}
	return f, nil
}

func (a *api) listLinks(c *gin.Context) {
	f, err := a.linkFilter(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	list, err := a.svc.Store().ListLinks(c.Request.Context(), f)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*besluitInformatieObjectJSON, 0, len(list))
	besluiten := map[string]*Besluit{}
	for _, l := range list {
		b, ok := besluiten[l.BesluitUUID]
		if !ok {
			if b, err = a.svc.Store().GetBesluit(c.Request.Context(), l.BesluitUUID); err != nil {
				apierrors.Respond(c, err)
				return
			}
			besluiten[l.BesluitUUID] = b
		}
		allowed, err := a.allowed(c, autorisaties.ScopeBesluitenLezen, b)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if !allowed {
			continue
		}
		r, err := a.linkRepr(c, l)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) createLink(c *gin.Context) {
	raw, err := loosefk.BindJSON(c, nil)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	ctx := c.Request.Context()
	bref, err := a.besluit.RunValidation(ctx, c.Request, loosefk.Lookup(raw, "besluit"))
	if err != nil {
		apierrors.Respond(c, apierrors.Field("besluit", err))
		return
	}
	b := bref.Local.(*Besluit)
	if !a.authorize(c, autorisaties.ScopeBesluitenAanmaken, b) {
		return
	}
	dref, err := a.document.RunValidation(ctx, c.Request, loosefk.Lookup(raw, "informatieobject"))
	if err != nil {
		apierrors.Respond(c, apierrors.Field("informatieobject", err))
		return
	}
	l := &BesluitInformatieObject{}
	if canonical, ok := dref.Local.(*documenten.Canonical); ok {
		l.Canonical = canonical.ID
	} else {
		l.InformatieObject = dref.URL
	}
	if err := a.svc.LinkDocument(ctx, b, l); err != nil {
		apierrors.Respond(c, err)
		return
	}
	r, err := a.linkRepr(c, l)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	br, err := a.besluitRepr(c.Request, b)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.notify(c, notificaties.ActieCreate, "besluitinformatieobject", r.URL, br)
	c.JSON(http.StatusCreated, r)
}

func (a *api) linkWithBesluit(c *gin.Context, scope string) (*BesluitInformatieObject, *Besluit, bool) {
	l, err := a.svc.Store().GetLink(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return nil, nil, false
	}
	b, err := a.svc.Store().GetBesluit(c.Request.Context(), l.BesluitUUID)
	if err != nil {
		apierrors.Respond(c, err)
		return nil, nil, false
	}
	if !a.authorize(c, scope, b) {
		return nil, nil, false
	}
	return l, b, true
}

func (a *api) getLink(c *gin.Context) {
	l, _, ok := a.linkWithBesluit(c, autorisaties.ScopeBesluitenLezen)
	if !ok {
		return
	}
	r, err := a.linkRepr(c, l)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (a *api) deleteLink(c *gin.Context) {
	l, b, ok := a.linkWithBesluit(c, autorisaties.ScopeBesluitenVerwijderen)
	if !ok {
		return
	}
	r, err := a.linkRepr(c, l)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	br, err := a.besluitRepr(c.Request, b)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if _, err := a.svc.UnlinkDocument(c.Request.Context(), l.UUID); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.notify(c, notificaties.ActieDestroy, "besluitinformatieobject", r.URL, br)
	c.Status(http.StatusNoContent)
}
