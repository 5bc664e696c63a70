package catalogi

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

type catalogusJSON struct {
	URL                      string `json:"url"`
	Domein                   string `json:"domein"`
	RSIN                     string `json:"rsin"`
	ContactpersoonBeheerNaam string `json:"contactpersoonBeheerNaam"`
}

type informatieObjectTypeJSON struct {
	URL                         string  `json:"url"`
	Catalogus                   string  `json:"catalogus"`
	Omschrijving                string  `json:"omschrijving"`
	Vertrouwelijkheidaanduiding string  `json:"vertrouwelijkheidaanduiding"`
	BeginGeldigheid             string  `json:"beginGeldigheid"`
	EindeGeldigheid             *string `json:"eindeGeldigheid"`
	Concept                     bool    `json:"concept"`
}

type besluitTypeJSON struct {
	URL                   string   `json:"url"`
	Catalogus             string   `json:"catalogus"`
	Omschrijving          string   `json:"omschrijving"`
	PublicatieIndicatie   bool     `json:"publicatieIndicatie"`
	InformatieObjectTypen []string `json:"informatieobjecttypen"`
	BeginGeldigheid       string   `json:"beginGeldigheid"`
	EindeGeldigheid       *string  `json:"eindeGeldigheid"`
	Concept               bool     `json:"concept"`
}

type api struct {
	svc       *Service
	router    *urls.Router
	catalogus *loosefk.Field
	iot       *loosefk.Field
}

// RegisterRoutes mounts the catalogi API on g (normally /catalogi/api/v1).
// Catalogus and informatieobjecttype references must point at this API.
func RegisterRoutes(g *gin.RouterGroup, svc *Service, router *urls.Router, guard autorisaties.Guard, allowedHosts ...string) {
	a := &api{
		svc:    svc,
		router: router,
		catalogus: loosefk.New(router,
			loosefk.WithRouteName(RouteCatalogus),
			loosefk.WithResolver(svc.CatalogusResolver()),
			loosefk.WithAllowedHosts(allowedHosts...),
			loosefk.WithValidators(loosefk.LocalOnly())),
		iot: loosefk.New(router,
			loosefk.WithRouteName(RouteInformatieObjectType),
			loosefk.WithResolver(svc.InformatieObjectTypeResolver()),
			loosefk.WithAllowedHosts(allowedHosts...),
			loosefk.WithValidators(loosefk.LocalOnly())),
	}
	read := guard(autorisaties.ComponentZTC, autorisaties.ScopeCatalogiLezen)
	write := guard(autorisaties.ComponentZTC, autorisaties.ScopeCatalogiSchrijven)

	router.Handle(g, http.MethodGet, "catalogus-list", "/catalogussen", read, a.listCatalogi)
	router.Handle(g, http.MethodPost, "catalogus-create", "/catalogussen", write, a.createCatalogus)
	router.Handle(g, http.MethodGet, RouteCatalogus, "/catalogussen/:uuid", read, a.getCatalogus)

	router.Handle(g, http.MethodGet, "informatieobjecttype-list", "/informatieobjecttypen", read, a.listInformatieObjectTypen)
	router.Handle(g, http.MethodPost, "informatieobjecttype-create", "/informatieobjecttypen", write, a.createInformatieObjectType)
	router.Handle(g, http.MethodGet, RouteInformatieObjectType, "/informatieobjecttypen/:uuid", read, a.getInformatieObjectType)
	g.PUT("/informatieobjecttypen/:uuid", write, a.updateInformatieObjectType)
	g.DELETE("/informatieobjecttypen/:uuid", write, a.deleteInformatieObjectType)
	router.Handle(g, http.MethodPost, "informatieobjecttype-publish", "/informatieobjecttypen/:uuid/publish", write, a.publishInformatieObjectType)

	router.Handle(g, http.MethodGet, "besluittype-list", "/besluittypen", read, a.listBesluitTypen)
	router.Handle(g, http.MethodPost, "besluittype-create", "/besluittypen", write, a.createBesluitType)
	router.Handle(g, http.MethodGet, RouteBesluitType, "/besluittypen/:uuid", read, a.getBesluitType)
	g.PUT("/besluittypen/:uuid", write, a.updateBesluitType)
	g.DELETE("/besluittypen/:uuid", write, a.deleteBesluitType)
	router.Handle(g, http.MethodPost, "besluittype-publish", "/besluittypen/:uuid/publish", write, a.publishBesluitType)
}

func (a *api) reverse(req *http.Request, obj loosefk.Routable) (string, error) {
	return a.router.Reverse(obj.RouteName(), obj.RouteParams(), req)
}

func (a *api) catalogusURL(req *http.Request, id string) (string, error) {
	return a.router.Reverse(RouteCatalogus, map[string]string{"uuid": id}, req)
}

func (a *api) catalogusRepr(req *http.Request, c *Catalogus) (*catalogusJSON, error) {
	u, err := a.reverse(req, c)
	if err != nil {
		return nil, err
	}
	return &catalogusJSON{URL: u, Domein: c.Domein, RSIN: c.RSIN, ContactpersoonBeheerNaam: c.ContactpersoonBeheerNaam}, nil
}

func (a *api) iotRepr(req *http.Request, t *InformatieObjectType) (*informatieObjectTypeJSON, error) {
	u, err := a.reverse(req, t)
	if err != nil {
		return nil, err
	}
	cat, err := a.catalogusURL(req, t.CatalogusUUID)
	if err != nil {
		return nil, err
	}
	return &informatieObjectTypeJSON{
		URL:                         u,
		Catalogus:                   cat,
		Omschrijving:                t.Omschrijving,
		Vertrouwelijkheidaanduiding: t.Vertrouwelijkheidaanduiding,
		BeginGeldigheid:             t.BeginGeldigheid,
		EindeGeldigheid:             t.EindeGeldigheid,
		Concept:                     t.Concept,
	}, nil
}

func (a *api) besluitTypeRepr(req *http.Request, t *BesluitType) (*besluitTypeJSON, error) {
	u, err := a.reverse(req, t)
	if err != nil {
		return nil, err
	}
	cat, err := a.catalogusURL(req, t.CatalogusUUID)
	if err != nil {
		return nil, err
	}
	iots := make([]string, 0, len(t.InformatieObjectTypen))
	for _, id := range t.InformatieObjectTypen {
		iu, err := a.router.Reverse(RouteInformatieObjectType, map[string]string{"uuid": id}, req)
		if err != nil {
			return nil, err
		}
		iots = append(iots, iu)
	}
	return &besluitTypeJSON{
		URL:                   u,
		Catalogus:             cat,
		Omschrijving:          t.Omschrijving,
		PublicatieIndicatie:   t.PublicatieIndicatie,
		InformatieObjectTypen: iots,
		BeginGeldigheid:       t.BeginGeldigheid,
		EindeGeldigheid:       t.EindeGeldigheid,
		Concept:               t.Concept,
	}, nil
}

func (a *api) listCatalogi(c *gin.Context) {
	list, err := a.svc.Store().ListCatalogi(c.Request.Context())
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*catalogusJSON, 0, len(list))
	for _, cat := range list {
		r, err := a.catalogusRepr(c.Request, cat)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) createCatalogus(c *gin.Context) {
	var req catalogusJSON
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.Respond(c, apierrors.NonField("parse_error", err.Error()))
		return
	}
	cat := &Catalogus{Domein: req.Domein, RSIN: req.RSIN, ContactpersoonBeheerNaam: req.ContactpersoonBeheerNaam}
	if err := a.svc.CreateCatalogus(c.Request.Context(), cat); err != nil {
		apierrors.Respond(c, err)
		return
	}
	r, err := a.catalogusRepr(c.Request, cat)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (a *api) getCatalogus(c *gin.Context) {
	cat, err := a.svc.Store().GetCatalogus(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	r, err := a.catalogusRepr(c.Request, cat)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// filter reads ?catalogus=<url>&status=alles|concept|definitief.
func (a *api) filter(c *gin.Context) (TypeFilter, error) {
	f := TypeFilter{Status: c.DefaultQuery("status", "definitief")}
	switch f.Status {
	case "alles", "concept", "definitief":
	default:
		return f, apierrors.Field("status", apierrors.New("invalid_choice", "Ongeldige status."))
	}
	if raw := c.Query("catalogus"); raw != "" {
		ref, err := a.catalogus.RunValidation(c.Request.Context(), c.Request, raw)
		if err != nil {
			return f, apierrors.Field("catalogus", err)
		}
		f.CatalogusUUID = ref.Local.(*Catalogus).UUID
	}
	return f, nil
}

func (a *api) listInformatieObjectTypen(c *gin.Context) {
	f, err := a.filter(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	list, err := a.svc.Store().ListInformatieObjectTypen(c.Request.Context(), f)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*informatieObjectTypeJSON, 0, len(list))
	for _, t := range list {
		r, err := a.iotRepr(c.Request, t)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) bindInformatieObjectType(c *gin.Context) (*InformatieObjectType, error) {
	var req informatieObjectTypeJSON
	raw, err := loosefk.BindJSON(c, &req)
	if err != nil {
		return nil, err
	}
	ref, err := a.catalogus.RunValidation(c.Request.Context(), c.Request, loosefk.Lookup(raw, "catalogus"))
	if err != nil {
		return nil, apierrors.Field("catalogus", err)
	}
	return &InformatieObjectType{
		CatalogusUUID:               ref.Local.(*Catalogus).UUID,
		Omschrijving:                req.Omschrijving,
		Vertrouwelijkheidaanduiding: req.Vertrouwelijkheidaanduiding,
		Geldigheid:                  geldigheid(req.BeginGeldigheid, req.EindeGeldigheid),
	}, nil
}

func geldigheid(begin string, einde *string) Geldigheid {
	if einde != nil && *einde == "" {
		einde = nil
	}
	return Geldigheid{BeginGeldigheid: begin, EindeGeldigheid: einde}
}

func (a *api) writeIOT(c *gin.Context, status int, t *InformatieObjectType) {
	r, err := a.iotRepr(c.Request, t)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(status, r)
}

func (a *api) createInformatieObjectType(c *gin.Context) {
	t, err := a.bindInformatieObjectType(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if err := a.svc.CreateInformatieObjectType(c.Request.Context(), t); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeIOT(c, http.StatusCreated, t)
}

func (a *api) getInformatieObjectType(c *gin.Context) {
	t, err := a.svc.Store().GetInformatieObjectType(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeIOT(c, http.StatusOK, t)
}

func (a *api) updateInformatieObjectType(c *gin.Context) {
	if _, err := a.svc.Store().GetInformatieObjectType(c.Request.Context(), c.Param("uuid")); err != nil {
		apierrors.Respond(c, err)
		return
	}
	t, err := a.bindInformatieObjectType(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	t.UUID = c.Param("uuid")
	if err := a.svc.UpdateInformatieObjectType(c.Request.Context(), t); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeIOT(c, http.StatusOK, t)
}

func (a *api) deleteInformatieObjectType(c *gin.Context) {
	if err := a.svc.DeleteInformatieObjectType(c.Request.Context(), c.Param("uuid")); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) publishInformatieObjectType(c *gin.Context) {
	t, err := a.svc.PublishInformatieObjectType(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeIOT(c, http.StatusOK, t)
}

func (a *api) listBesluitTypen(c *gin.Context) {
	f, err := a.filter(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	list, err := a.svc.Store().ListBesluitTypen(c.Request.Context(), f)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	out := make([]*besluitTypeJSON, 0, len(list))
	for _, t := range list {
		r, err := a.besluitTypeRepr(c.Request, t)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		out = append(out, r)
	}
	c.JSON(http.StatusOK, out)
}

func (a *api) bindBesluitType(c *gin.Context) (*BesluitType, error) {
	var req besluitTypeJSON
	raw, err := loosefk.BindJSON(c, &req)
	if err != nil {
		return nil, err
	}
	ctx := c.Request.Context()
	ref, err := a.catalogus.RunValidation(ctx, c.Request, loosefk.Lookup(raw, "catalogus"))
	if err != nil {
		return nil, apierrors.Field("catalogus", err)
	}
	iots, err := a.resolveInformatieObjectTypen(ctx, c.Request, req.InformatieObjectTypen)
	if err != nil {
		return nil, err
	}
	return &BesluitType{
		CatalogusUUID:         ref.Local.(*Catalogus).UUID,
		Omschrijving:          req.Omschrijving,
		PublicatieIndicatie:   req.PublicatieIndicatie,
		InformatieObjectTypen: iots,
		Geldigheid:            geldigheid(req.BeginGeldigheid, req.EindeGeldigheid),
	}, nil
}

func (a *api) resolveInformatieObjectTypen(ctx context.Context, req *http.Request, raw []string) ([]string, error) {
	out := make([]string, 0, len(raw))
	for i, u := range raw {
		ref, err := a.iot.RunValidation(ctx, req, u)
		if err != nil {
			return nil, apierrors.Field("informatieobjecttypen."+strconv.Itoa(i), err)
		}
		out = append(out, ref.Local.(*InformatieObjectType).UUID)
	}
	return out, nil
}

func (a *api) writeBesluitType(c *gin.Context, status int, t *BesluitType) {
	r, err := a.besluitTypeRepr(c.Request, t)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(status, r)
}

func (a *api) createBesluitType(c *gin.Context) {
	t, err := a.bindBesluitType(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	if err := a.svc.CreateBesluitType(c.Request.Context(), t); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeBesluitType(c, http.StatusCreated, t)
}

func (a *api) getBesluitType(c *gin.Context) {
	t, err := a.svc.Store().GetBesluitType(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeBesluitType(c, http.StatusOK, t)
}

func (a *api) updateBesluitType(c *gin.Context) {
	if _, err := a.svc.Store().GetBesluitType(c.Request.Context(), c.Param("uuid")); err != nil {
		apierrors.Respond(c, err)
		return
	}
	t, err := a.bindBesluitType(c)
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	t.UUID = c.Param("uuid")
	if err := a.svc.UpdateBesluitType(c.Request.Context(), t); err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeBesluitType(c, http.StatusOK, t)
}

func (a *api) deleteBesluitType(c *gin.Context) {
	if err := a.svc.DeleteBesluitType(c.Request.Context(), c.Param("uuid")); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *api) publishBesluitType(c *gin.Context) {
	t, err := a.svc.PublishBesluitType(c.Request.Context(), c.Param("uuid"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}
	a.writeBesluitType(c, http.StatusOK, t)
}
