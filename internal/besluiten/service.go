package besluiten

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/catalogi"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/loosefk"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/urls"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/validators"
)

const identificatiePrefix = "BESLUIT"

const dateLayout = "2006-01-02"

type Service struct {
	store      *Store
	catalogi   *catalogi.Service
	documenten documenten.Store
	router     *urls.Router
	fetcher    loosefk.Fetcher
	now        func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// NewService builds the besluiten service. fetcher is used for remote besluittypen and
// documents when checking which informatieobjecttypen a besluit accepts.
func NewService(store *Store, cat *catalogi.Service, docs documenten.Store, router *urls.Router, fetcher loosefk.Fetcher, opts ...Option) *Service {
	s := &Service{store: store, catalogi: cat, documenten: docs, router: router, fetcher: fetcher, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Store() *Store { return s.store }

// untilToday rejects dates after today.
func untilToday(now time.Time) validation.Rule {
	return validation.By(func(value interface{}) error {
		d, _ := value.(string)
		if d != "" && d > now.Format(dateLayout) {
			return apierrors.New("future_not_allowed", "Deze waarde mag niet in de toekomst liggen.")
		}
		return nil
	})
}

func (s *Service) validate(b *Besluit) error {
	return validation.Errors{
		"identificatie": validation.Validate(b.Identificatie, validation.Length(0, 50), validators.Identificatie),
		"verantwoordelijkeOrganisatie": validation.Validate(b.VerantwoordelijkeOrganisatie,
			validation.Required, validators.RSIN),
		"zaak":                   validation.Validate(b.Zaak, validation.Length(0, 1000), is.URL),
		"datum":                  validation.Validate(b.Datum, validation.Required, validation.Date(dateLayout), untilToday(s.now())),
		"ingangsdatum":           validation.Validate(b.Ingangsdatum, validation.Required, validation.Date(dateLayout)),
		"vervaldatum":            validation.Validate(b.Vervaldatum, validation.Date(dateLayout)),
		"vervalreden":            validation.Validate(b.Vervalreden, validation.In(vervalredenen...)),
		"bestuursorgaan":         validation.Validate(b.Bestuursorgaan, validation.Length(0, 50)),
		"publicatiedatum":        validation.Validate(b.Publicatiedatum, validation.Date(dateLayout)),
		"verzenddatum":           validation.Validate(b.Verzenddatum, validation.Date(dateLayout)),
		"uiterlijkeReactiedatum": validation.Validate(b.UiterlijkeReactiedatum, validation.Date(dateLayout)),
	}.Filter()
}

// checkIdentificatie generates an identificatie when empty and otherwise makes sure
// the organisatie does not use it yet.
func (s *Service) checkIdentificatie(ctx context.Context, b *Besluit) error {
	existing, err := s.store.Identificaties(ctx, b.VerantwoordelijkeOrganisatie)
	if err != nil {
		return err
	}
	if b.Identificatie == "" {
		b.Identificatie = nextIdentificatie(existing, b.Datum, s.now())
		return nil
	}
	for _, id := range existing {
		if id == b.Identificatie {
			return apierrors.Field("identificatie", apierrors.New("identificatie-niet-uniek",
				"Deze identificatie bestaat al voor deze verantwoordelijke organisatie."))
		}
	}
	return nil
}

func nextIdentificatie(existing []string, datum string, now time.Time) string {
	year := strconv.Itoa(now.Year())
	if len(datum) >= 4 {
		year = datum[:4]
	}
	prefix := identificatiePrefix + "-" + year + "-"
	highest := 0
	for _, id := range existing {
		if !strings.HasPrefix(id, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(id, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%010d", prefix, highest+1)
}

// CreateBesluit stores b. The besluittype has been validated by the caller.
func (s *Service) CreateBesluit(ctx context.Context, b *Besluit) error {
	if err := s.validate(b); err != nil {
		return err
	}
	if b.BesluitTypeUUID == "" && b.BesluitType == "" {
		return apierrors.Field("besluittype", apierrors.New("required", "Dit veld is vereist."))
	}
	if err := s.checkIdentificatie(ctx, b); err != nil {
		return err
	}
	b.UUID = uuid.NewString()
	return s.store.CreateBesluit(ctx, b)
}

// DeleteBesluit removes the besluit and its documents links and returns it as it was.
func (s *Service) DeleteBesluit(ctx context.Context, id string) (*Besluit, error) {
	b, err := s.store.GetBesluit(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteBesluit(ctx, id); err != nil {
		return nil, err
	}
	return b, nil
}

// BesluitTypeURL is the besluittype URL as used by autorisaties: local types are built
// from the configured base URL.
func (s *Service) BesluitTypeURL(b *Besluit) (string, error) {
	if b.BesluitTypeUUID == "" {
		return b.BesluitType, nil
	}
	return s.router.Reverse(catalogi.RouteBesluitType, map[string]string{"uuid": b.BesluitTypeUUID}, nil)
}

func (s *Service) informatieObjectTypeURL(id string) (string, error) {
	return s.router.Reverse(catalogi.RouteInformatieObjectType, map[string]string{"uuid": id}, nil)
}

// allowedTypes lists the informatieobjecttype URLs the besluittype of b accepts.
func (s *Service) allowedTypes(ctx context.Context, b *Besluit) ([]string, error) {
	if b.BesluitTypeUUID != "" {
		bt, err := s.catalogi.Store().GetBesluitType(ctx, b.BesluitTypeUUID)
		if err != nil {
			return nil, err
		}
		out := make([]string, 0, len(bt.InformatieObjectTypen))
		for _, id := range bt.InformatieObjectTypen {
			u, err := s.informatieObjectTypeURL(id)
			if err != nil {
				return nil, err
			}
			out = append(out, u)
		}
		return out, nil
	}
	if s.fetcher == nil {
		return nil, fmt.Errorf("besluittype %s: no fetcher configured", b.BesluitType)
	}
	data, err := s.fetcher.Fetch(ctx, b.BesluitType)
	if err != nil {
		return nil, apierrors.Field("besluit", err)
	}
	raw, _ := data["informatieobjecttypen"].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if u, ok := v.(string); ok {
			out = append(out, u)
		}
	}
	return out, nil
}

// documentType returns the informatieobjecttype URL of the linked document.
func (s *Service) documentType(ctx context.Context, l *BesluitInformatieObject) (string, error) {
	if l.Canonical != "" {
		latest, err := s.documenten.LatestVersion(ctx, l.Canonical)
		if err != nil {
			return "", fmt.Errorf("document %s: %w", l.Canonical, err)
		}
		if latest.InformatieObjectTypeUUID != "" {
			return s.informatieObjectTypeURL(latest.InformatieObjectTypeUUID)
		}
		return latest.InformatieObjectType, nil
	}
	if s.fetcher == nil {
		return "", fmt.Errorf("informatieobject %s: no fetcher configured", l.InformatieObject)
	}
	data, err := s.fetcher.Fetch(ctx, l.InformatieObject)
	if err != nil {
		return "", apierrors.Field("informatieobject", err)
	}
	u, _ := data["informatieobjecttype"].(string)
	return u, nil
}

func missingRelation() error {
	return apierrors.NonField("missing-besluittype-informatieobjecttype-relation",
		"Het informatieobjecttype hoort niet bij het besluittype van het besluit.")
}

// LinkDocument stores l after checking it is unique and that the besluittype accepts
// the informatieobjecttype of the document.
func (s *Service) LinkDocument(ctx context.Context, b *Besluit, l *BesluitInformatieObject) error {
	l.BesluitUUID = b.UUID
	existing, err := s.store.ListLinks(ctx, LinkFilter{BesluitUUID: b.UUID})
	if err != nil {
		return err
	}
	for _, o := range existing {
		if o.SameDocument(l) {
			return apierrors.NonField("unique", "De velden besluit, informatieobject moeten een unieke set zijn.")
		}
	}

	iot, err := s.documentType(ctx, l)
	if err != nil {
		return err
	}
	allowed, err := s.allowedTypes(ctx, b)
	if err != nil {
		return err
	}
	found := false
	for _, u := range allowed {
		if u == iot {
			found = true
			break
		}
	}
	if !found {
		return missingRelation()
	}

	l.UUID = uuid.NewString()
	return s.store.CreateLink(ctx, l)
}

// UnlinkDocument removes a link and returns it as it was.
func (s *Service) UnlinkDocument(ctx context.Context, id string) (*BesluitInformatieObject, error) {
	l, err := s.store.GetLink(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.DeleteLink(ctx, id); err != nil {
		return nil, err
	}
	return l, nil
}

// DocumentInUse reports whether a local document is linked to a besluit.
func (s *Service) DocumentInUse(ctx context.Context, canonical string) (bool, error) {
	return s.store.HasLinks(ctx, canonical)
}
