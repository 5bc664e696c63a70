package catalogi

import (
	"context"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/autorisaties"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/vertrouwelijkheid"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
)

const dateLayout = "2006-01-02"

type Service struct {
	store  *Store
	router *urls.Router
}

func NewService(store *Store, router *urls.Router) *Service {
	return &Service{store: store, router: router}
}

func (s *Service) Store() *Store { return s.store }

func (s *Service) CreateCatalogus(ctx context.Context, c *Catalogus) error {
	err := validation.Errors{
		"domein": validation.Validate(c.Domein, validation.Required, validation.Length(1, 5)),
		"rsin":   validation.Validate(c.RSIN, validation.Required, validation.Length(9, 9), is.Digit),
		"contactpersoonBeheerNaam": validation.Validate(c.ContactpersoonBeheerNaam,
			validation.Required, validation.Length(1, 40)),
	}.Filter()
	if err != nil {
		return err
	}
	exists, err := s.store.CatalogusExists(ctx, c.Domein, c.RSIN)
	if err != nil {
		return err
	}
	if exists {
		return apierrors.NonField("unique", "Er bestaat al een catalogus met dit domein en RSIN.")
	}
	c.UUID = uuid.NewString()
	return s.store.CreateCatalogus(ctx, c)
}

func validateGeldigheid(g Geldigheid) error {
	err := validation.Errors{
		"beginGeldigheid": validation.Validate(g.BeginGeldigheid, validation.Required, validation.Date(dateLayout)),
		"eindeGeldigheid": validation.Validate(g.EindeGeldigheid, validation.Date(dateLayout)),
	}.Filter()
	if err != nil {
		return err
	}
	if g.EindeGeldigheid != nil && *g.EindeGeldigheid != "" && *g.EindeGeldigheid < g.BeginGeldigheid {
		return apierrors.NonField("date-mismatch", "eindeGeldigheid moet na beginGeldigheid liggen.")
	}
	return nil
}

func overlapError(kind, omschrijving string) error {
	return apierrors.NonField("overlap", fmt.Sprintf(
		"Dit %s komt al voor binnen de catalogus en opgegeven geldigheidsperiode (omschrijving %q).", kind, omschrijving))
}

func nonConcept() error {
	return apierrors.NonField("non-concept-object", "Het is niet toegestaan om een gepubliceerd object aan te passen.")
}

func (s *Service) checkCatalogus(ctx context.Context, id string) error {
	if _, err := s.store.GetCatalogus(ctx, id); err != nil {
		return apierrors.Field("catalogus", apierrors.New("does_not_exist", "Het object bestaat niet."))
	}
	return nil
}

func validateInformatieObjectType(t *InformatieObjectType) error {
	var result *multierror.Error
	if err := (validation.Errors{
		"omschrijving": validation.Validate(t.Omschrijving, validation.Required, validation.Length(1, 80)),
		"vertrouwelijkheidaanduiding": validation.Validate(t.Vertrouwelijkheidaanduiding,
			validation.Required, validation.In(vertrouwelijkheid.Values()...)),
	}).Filter(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := validateGeldigheid(t.Geldigheid); err != nil {
		result = multierror.Append(result, err)
	}
	return result.ErrorOrNil()
}

func (s *Service) checkIOTOverlap(ctx context.Context, t *InformatieObjectType) error {
	others, err := s.store.InformatieObjectTypenWithOmschrijving(ctx, t.CatalogusUUID, t.Omschrijving)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.UUID != t.UUID && o.Geldigheid.Overlaps(t.Geldigheid) {
			return overlapError("informatieobjecttype", t.Omschrijving)
		}
	}
	return nil
}

// CreateInformatieObjectType stores a new type as concept.
func (s *Service) CreateInformatieObjectType(ctx context.Context, t *InformatieObjectType) error {
	if err := validateInformatieObjectType(t); err != nil {
		return err
	}
	if err := s.checkCatalogus(ctx, t.CatalogusUUID); err != nil {
		return err
	}
	t.UUID = uuid.NewString()
	t.Concept = true
	if err := s.checkIOTOverlap(ctx, t); err != nil {
		return err
	}
	return s.store.CreateInformatieObjectType(ctx, t)
}

// UpdateInformatieObjectType replaces a concept type.
func (s *Service) UpdateInformatieObjectType(ctx context.Context, t *InformatieObjectType) error {
	existing, err := s.store.GetInformatieObjectType(ctx, t.UUID)
	if err != nil {
		return err
	}
	if !existing.Concept {
		return nonConcept()
	}
	if err := validateInformatieObjectType(t); err != nil {
		return err
	}
	if err := s.checkCatalogus(ctx, t.CatalogusUUID); err != nil {
		return err
	}
	if err := s.checkIOTOverlap(ctx, t); err != nil {
		return err
	}
	t.Concept = true
	t.CreatedAt = existing.CreatedAt
	return s.store.SaveInformatieObjectType(ctx, t)
}

func (s *Service) DeleteInformatieObjectType(ctx context.Context, id string) error {
	existing, err := s.store.GetInformatieObjectType(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Concept {
		return nonConcept()
	}
	return s.store.DeleteInformatieObjectType(ctx, id)
}

func (s *Service) PublishInformatieObjectType(ctx context.Context, id string) (*InformatieObjectType, error) {
	t, err := s.store.GetInformatieObjectType(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Concept = false
	if err := s.store.SaveInformatieObjectType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Service) validateBesluitType(ctx context.Context, t *BesluitType) error {
	var result *multierror.Error
	if err := validation.Validate(t.Omschrijving, validation.Length(0, 80)); err != nil {
		result = multierror.Append(result, apierrors.Field("omschrijving", err))
	}
	if err := validateGeldigheid(t.Geldigheid); err != nil {
		result = multierror.Append(result, err)
	}
	if result.ErrorOrNil() != nil {
		return result
	}
	if err := s.checkCatalogus(ctx, t.CatalogusUUID); err != nil {
		return err
	}
	for i, id := range t.InformatieObjectTypen {
		iot, err := s.store.GetInformatieObjectType(ctx, id)
		if err != nil {
			return apierrors.Field(fmt.Sprintf("informatieobjecttypen.%d", i),
				apierrors.New("does_not_exist", "Het object bestaat niet."))
		}
		if iot.CatalogusUUID != t.CatalogusUUID {
			return apierrors.Field("informatieobjecttypen",
				apierrors.New("relations-incorrect-catalogus", "De informatieobjecttypen moeten tot dezelfde catalogus behoren als het besluittype."))
		}
	}
	others, err := s.store.BesluitTypenWithOmschrijving(ctx, t.CatalogusUUID, t.Omschrijving)
	if err != nil {
		return err
	}
	for _, o := range others {
		if o.UUID != t.UUID && o.Geldigheid.Overlaps(t.Geldigheid) {
			return overlapError("besluittype", t.Omschrijving)
		}
	}
	return nil
}

func (s *Service) CreateBesluitType(ctx context.Context, t *BesluitType) error {
	t.UUID = uuid.NewString()
	if err := s.validateBesluitType(ctx, t); err != nil {
		return err
	}
	t.Concept = true
	return s.store.CreateBesluitType(ctx, t)
}

func (s *Service) UpdateBesluitType(ctx context.Context, t *BesluitType) error {
	existing, err := s.store.GetBesluitType(ctx, t.UUID)
	if err != nil {
		return err
	}
	if !existing.Concept {
		return nonConcept()
	}
	if err := s.validateBesluitType(ctx, t); err != nil {
		return err
	}
	t.Concept = true
	t.CreatedAt = existing.CreatedAt
	return s.store.SaveBesluitType(ctx, t)
}

func (s *Service) DeleteBesluitType(ctx context.Context, id string) error {
	existing, err := s.store.GetBesluitType(ctx, id)
	if err != nil {
		return err
	}
	if !existing.Concept {
		return nonConcept()
	}
	return s.store.DeleteBesluitType(ctx, id)
}

// PublishBesluitType publishes a besluittype whose informatieobjecttypen are all published.
func (s *Service) PublishBesluitType(ctx context.Context, id string) (*BesluitType, error) {
	t, err := s.store.GetBesluitType(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, iotID := range t.InformatieObjectTypen {
		iot, err := s.store.GetInformatieObjectType(ctx, iotID)
		if err != nil {
			return nil, err
		}
		if iot.Concept {
			return nil, apierrors.NonField("concept-relation", "Alle informatieobjecttypen moeten gepubliceerd zijn.")
		}
	}
	t.Concept = false
	if err := s.store.SaveBesluitType(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// TypeURLs implements autorisaties.TypeSource.
func (s *Service) TypeURLs(ctx context.Context, component string) ([]string, error) {
	var objs []loosefk.Routable
	switch component {
	case autorisaties.ComponentDRC:
		list, err := s.store.ListInformatieObjectTypen(ctx, TypeFilter{Status: "alles"})
		if err != nil {
			return nil, err
		}
		for _, t := range list {
			objs = append(objs, t)
		}
	case autorisaties.ComponentBRC:
		list, err := s.store.ListBesluitTypen(ctx, TypeFilter{Status: "alles"})
		if err != nil {
			return nil, err
		}
		for _, t := range list {
			objs = append(objs, t)
		}
	default:
		return nil, nil
	}
	out := make([]string, 0, len(objs))
	for _, o := range objs {
		u, err := s.router.Reverse(o.RouteName(), o.RouteParams(), nil)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

func (s *Service) CatalogusResolver() loosefk.Resolver {
	return loosefk.ResolverFunc(func(ctx context.Context, params map[string]string) (any, error) {
		return s.store.GetCatalogus(ctx, params["uuid"])
	})
}

func (s *Service) InformatieObjectTypeResolver() loosefk.Resolver {
	return loosefk.ResolverFunc(func(ctx context.Context, params map[string]string) (any, error) {
		return s.store.GetInformatieObjectType(ctx, params["uuid"])
	})
}

func (s *Service) BesluitTypeResolver() loosefk.Resolver {
	return loosefk.ResolverFunc(func(ctx context.Context, params map[string]string) (any, error) {
		return s.store.GetBesluitType(ctx, params["uuid"])
	})
}
