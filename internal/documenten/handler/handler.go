package handler

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten/service"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/notificaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/schema"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

const (
	kanaal   = "documenten"
	resource = "enkelvoudiginformatieobject"
)

// Config wires the Documenten API.
type Config struct {
	Router   *urls.Router
	Service  *service.Service
	Catalogi *catalogi.Service
	Notifier *notificaties.Notifier
	Guard    autorisaties.Guard
	// ZTCSpecURL is the Catalogi API document remote informatieobjecttypen are checked against.
	ZTCSpecURL   string
	Fetcher      loosefk.Fetcher
	Loader       *schema.Loader
	AllowedHosts []string
	// InUse reports whether other components still refer to a document canonical.
	// Such documents cannot be deleted.
	InUse func(ctx context.Context, canonical string) (bool, error)
}

type enkelvoudigInformatieObjectJSON struct {
	URL                         string    `json:"url"`
	Identificatie               string    `json:"identificatie"`
	Bronorganisatie             string    `json:"bronorganisatie"`
	CreatieDatum                string    `json:"creatiedatum"`
	Titel                       string    `json:"titel"`
	Vertrouwelijkheidaanduiding string    `json:"vertrouwelijkheidaanduiding"`
	Auteur                      string    `json:"auteur"`
	Status                      string    `json:"status"`
	Formaat                     string    `json:"formaat"`
	Taal                        string    `json:"taal"`
	Versie                      int       `json:"versie"`
	BeginRegistratie            time.Time `json:"beginRegistratie"`
	Bestandsnaam                string    `json:"bestandsnaam"`
	Inhoud                      string    `json:"inhoud"`
	Bestandsomvang              int64     `json:"bestandsomvang"`
	Link                        string    `json:"link"`
	Beschrijving                string    `json:"beschrijving"`
	InformatieObjectType        string    `json:"informatieobjecttype"`
}

type api struct {
	cfg Config
	iot *loosefk.Field
}

// RegisterRoutes mounts the Documenten API on g (normally /documenten/api/v1).
func RegisterRoutes(g *gin.RouterGroup, cfg Config) {
	a := &api{cfg: cfg}
	a.iot = loosefk.New(cfg.Router,
		loosefk.WithRouteName(catalogi.RouteInformatieObjectType),
		loosefk.WithResolver(cfg.Catalogi.InformatieObjectTypeResolver()),
		loosefk.WithAllowedHosts(cfg.AllowedHosts...),
		loosefk.WithValidators(
			schema.NewResourceValidator("InformatieObjectType", cfg.ZTCSpecURL, cfg.Fetcher, cfg.Loader),
			loosefk.ValidatorFunc(published),
		),
	)

	guard := func(scope string) gin.HandlerFunc { return cfg.Guard(autorisaties.ComponentDRC, scope) }
	r := cfg.Router
	r.Handle(g, http.MethodGet, "enkelvoudiginformatieobject-list", "/enkelvoudiginformatieobjecten",
		guard(autorisaties.ScopeDocumentenLezen), a.list)
	r.Handle(g, http.MethodPost, "enkelvoudiginformatieobject-create", "/enkelvoudiginformatieobjecten",
		guard(autorisaties.ScopeDocumentenAanmaken), a.create)
	r.Handle(g, http.MethodGet, documenten.RouteEnkelvoudigInformatieObject, "/enkelvoudiginformatieobjecten/:uuid",
		guard(autorisaties.ScopeDocumentenLezen), a.get)
	g.PUT("/enkelvoudiginformatieobjecten/:uuid", guard(autorisaties.ScopeDocumentenBijwerken), a.update(true))
	g.PATCH("/enkelvoudiginformatieobjecten/:uuid", guard(autorisaties.ScopeDocumentenBijwerken), a.update(false))
	g.DELETE("/enkelvoudiginformatieobjecten/:uuid", guard(autorisaties.ScopeDocumentenVerwijderen), a.destroy)
	r.Handle(g, http.MethodGet, "enkelvoudiginformatieobject-download", "/enkelvoudiginformatieobjecten/:uuid/download",
		guard(autorisaties.ScopeDocumentenLezen), a.download)
}

// published rejects local informatieobjecttypen that are still concept.
func published(ctx context.Context, t loosefk.Target) error {
	if !t.Local {
		return nil
	}
	if iot, ok := t.Object.(*catalogi.InformatieObjectType); ok && iot.Concept {
		return apierrors.New("not-published", "Het informatieobjecttype is nog niet gepubliceerd.")
	}
	return nil
}

// typeURL is the informatieobjecttype URL as used by autorisaties: built from the
// configured base URL for local types.
func (a *api) typeURL(e *documenten.EnkelvoudigInformatieObject, req *http.Request) (string, error) {
	if e.InformatieObjectTypeUUID == "" {
		return e.InformatieObjectType, nil
	}
	return a.cfg.Router.Reverse(catalogi.RouteInformatieObjectType, map[string]string{"uuid": e.InformatieObjectTypeUUID}, req)
}

func (a *api) allowed(c *gin.Context, scope string, e *documenten.EnkelvoudigInformatieObject) (bool, error) {
	u, err := a.typeURL(e, nil)
	if err != nil {
		return false, err
	}
	return autorisaties.GrantFrom(c).Allows(scope, u, e.Vertrouwelijkheidaanduiding), nil
}

func (a *api) authorize(c *gin.Context, scope string, e *documenten.EnkelvoudigInformatieObject) bool {
	ok, err := a.allowed(c, scope, e)
	if err != nil {
		apierrors.Respond(c, err)
		return false
	}
	if !ok {
		apierrors.Respond(c, fmt.Errorf("%w: %s on %s", apierrors.ErrPermissionDenied, scope, e.UUID))
		return false
	}
	return true
}

func (a *api) represent(req *http.Request, e *documenten.EnkelvoudigInformatieObject) (*enkelvoudigInformatieObjectJSON, error) {
	u, err := a.cfg.Router.Reverse(e.RouteName(), e.RouteParams(), req)
	if err != nil {
		return nil, err
	}
	iot, err := a.typeURL(e, req)
	if err != nil {
		return nil, err
	}
	download, err := a.cfg.Router.Reverse("enkelvoudiginformatieobject-download", e.RouteParams(), req)
	if err != nil {
		return nil, err
	}
	return &enkelvoudigInformatieObjectJSON{
		URL:                         u,
		Identificatie:               e.Identificatie,
		Bronorganisatie:             e.Bronorganisatie,
		CreatieDatum:                e.CreatieDatum,
		Titel:                       e.Titel,
		Vertrouwelijkheidaanduiding: e.Vertrouwelijkheidaanduiding,
		Auteur:                      e.Auteur,
		Status:                      e.Status,
		Formaat:                     e.Formaat,
		Taal:                        e.Taal,
		Versie:                      e.Versie,
		BeginRegistratie:            e.BeginRegistratie,
		Bestandsnaam:                e.Bestandsnaam,
		Inhoud:                      download + "?versie=" + strconv.Itoa(e.Versie),
		Bestandsomvang:              e.Bestandsomvang,
		Link:                        e.Link,
		Beschrijving:                e.Beschrijving,
		InformatieObjectType:        iot,
	}, nil
}

func (a *api) notify(c *gin.Context, actie string, body *enkelvoudigInformatieObjectJSON) {
	if a.cfg.Notifier == nil {
		return
	}
	a.cfg.Notifier.Notify(c.Request.Context(), notificaties.Message{
		Kanaal:      kanaal,
		HoofdObject: body.URL,
		Resource:    resource,
		ResourceURL: body.URL,
		Actie:       actie,
		Kenmerken: map[string]string{
			"bronorganisatie":             body.Bronorganisatie,
			"informatieobjecttype":        body.InformatieObjectType,
			"vertrouwelijkheidaanduiding": body.Vertrouwelijkheidaanduiding,
		},
	})
}

func (a *api) respond(c *gin.Context, status int, e *documenten.EnkelvoudigInformatieObject, actie string) {
	body, err := a.represent(c.Request, e)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if actie != "" {
		a.notify(c, actie, body)
	}
	c.JSON(status, body)
}

func versie(c *gin.Context) (int, error) {
	raw := c.Query("versie")
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return 0, apierrors.Field("versie", apierrors.New("invalid", "Geef een geldig getal op."))
	}
	return v, nil
}

func (a *api) list(c *gin.Context) {
	list, err := a.cfg.Service.List(c.Request.Context(), documenten.ListFilter{
		Bronorganisatie: c.Query("bronorganisatie"),
		Identificatie:   c.Query("identificatie"),
	})
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*enkelvoudigInformatieObjectJSON, 0, len(list))
	for _, e := range list {
		ok, err := a.allowed(c, autorisaties.ScopeDocumentenLezen, e)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if !ok {
			continue
		}
		body, err := a.represent(c.Request, e)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, body)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) get(c *gin.Context) {
	v, err := versie(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	e, err := a.cfg.Service.Get(c.Request.Context(), c.Param("uuid"), v)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeDocumentenLezen, e) {
		return
	}
	a.respond(c, http.StatusOK, e, "")
}

// stringFields maps attribute names to the fields they set.
func stringFields(e *documenten.EnkelvoudigInformatieObject) map[string]*string {
	return map[string]*string{
		"identificatie":               &e.Identificatie,
		"bronorganisatie":             &e.Bronorganisatie,
		"creatiedatum":                &e.CreatieDatum,
		"titel":                       &e.Titel,
		"vertrouwelijkheidaanduiding": &e.Vertrouwelijkheidaanduiding,
		"auteur":                      &e.Auteur,
		"status":                      &e.Status,
		"formaat":                     &e.Formaat,
		"taal":                        &e.Taal,
		"bestandsnaam":                &e.Bestandsnaam,
		"link":                        &e.Link,
		"beschrijving":                &e.Beschrijving,
	}
}

// apply copies the attributes in raw onto e. With full set, absent attributes are cleared.
// It returns the decoded inhoud, nil when absent.
func (a *api) apply(c *gin.Context, e *documenten.EnkelvoudigInformatieObject, raw map[string]any, full bool) ([]byte, error) {
	for name, dst := range stringFields(e) {
		v, ok := raw[name]
		if !ok {
			if full {
				*dst = ""
			}
			continue
		}
		s, ok := v.(string)
		if !ok && v != nil {
			return nil, apierrors.Field(name, apierrors.New("invalid", "Geef een geldige string op."))
		}
		*dst = s
	}

	if _, present := raw["informatieobjecttype"]; present || full {
		ref, err := a.iot.RunValidation(c.Request.Context(), c.Request, loosefk.Lookup(raw, "informatieobjecttype"))
		if err != nil {
			return nil, apierrors.Field("informatieobjecttype", err)
		}
		e.InformatieObjectTypeUUID, e.InformatieObjectType = "", ""
		if iot, ok := ref.Local.(*catalogi.InformatieObjectType); ok {
			e.InformatieObjectTypeUUID = iot.UUID
			if e.Vertrouwelijkheidaanduiding == "" {
				e.Vertrouwelijkheidaanduiding = iot.Vertrouwelijkheidaanduiding
			}
		} else {
			e.InformatieObjectType = ref.URL
			if e.Vertrouwelijkheidaanduiding == "" {
				e.Vertrouwelijkheidaanduiding = a.remoteVertrouwelijkheid(c.Request.Context(), ref.URL)
			}
		}
	}

	v, ok := raw["inhoud"]
	if !ok || v == nil {
		return nil, nil
	}
	s, ok := v.(string)
	if !ok {
		return nil, apierrors.Field("inhoud", apierrors.New("invalid", "Geef base64 gecodeerde data op."))
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, apierrors.Field("inhoud", apierrors.New("invalid", "Geef base64 gecodeerde data op."))
	}
	return b, nil
}

func (a *api) remoteVertrouwelijkheid(ctx context.Context, u string) string {
	if a.cfg.Fetcher == nil {
		return ""
	}
	data, err := a.cfg.Fetcher.Fetch(ctx, u)
	if err != nil {
		return ""
	}
	s, _ := data["vertrouwelijkheidaanduiding"].(string)
	return s
}

func (a *api) create(c *gin.Context) {
	raw, err := loosefk.BindJSON(c, nil)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	e := &documenten.EnkelvoudigInformatieObject{}
	inhoud, err := a.apply(c, e, raw, true)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeDocumentenAanmaken, e) {
		return
	}
	if err := a.cfg.Service.Create(c.Request.Context(), e, inhoud); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.respond(c, http.StatusCreated, e, notificaties.ActieCreate)
}

// update stores the request as a new version of the document.
func (a *api) update(full bool) gin.HandlerFunc {
	actie := notificaties.ActiePartial
	if full {
		actie = notificaties.ActieUpdate
	}
	return func(c *gin.Context) {
		latest, err := a.cfg.Service.Get(c.Request.Context(), c.Param("uuid"), 0)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if !a.authorize(c, autorisaties.ScopeDocumentenBijwerken, latest) {
			return
		}
		raw, err := loosefk.BindJSON(c, nil)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		next := latest.Clone()
		inhoud, err := a.apply(c, next, raw, full)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if next.Identificatie == "" {
			next.Identificatie = latest.Identificatie
		}
		if err := a.cfg.Service.Update(c.Request.Context(), next, inhoud); err != nil {
			apierrors.Respond(c, err)
			return
		}
		a.respond(c, http.StatusOK, next, actie)
	}
}

func (a *api) destroy(c *gin.Context) {
	latest, err := a.cfg.Service.Get(c.Request.Context(), c.Param("uuid"), 0)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeDocumentenVerwijderen, latest) {
		return
	}
	if a.cfg.InUse != nil {
		inUse, err := a.cfg.InUse(c.Request.Context(), latest.CanonicalID)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		if inUse {
			apierrors.Respond(c, apierrors.NonField("pending-relations",
				"Het informatieobject is nog gekoppeld aan andere objecten."))
			return
		}
	}
	body, err := a.represent(c.Request, latest)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if _, err := a.cfg.Service.Delete(c.Request.Context(), latest.UUID); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.notify(c, notificaties.ActieDestroy, body)
	c.Status(http.StatusNoContent)
}

func (a *api) download(c *gin.Context) {
	v, err := versie(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	e, content, err := a.cfg.Service.Content(c.Request.Context(), c.Param("uuid"), v)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if !a.authorize(c, autorisaties.ScopeDocumentenLezen, e) {
		return
	}
	if e.Bestandsnaam != "" {
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.Bestandsnaam))
	}
	c.Data(http.StatusOK, "application/octet-stream", content)
}
