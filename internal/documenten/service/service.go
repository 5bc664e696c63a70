package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/open-zaak/open-zaak/backend/go-services/internal/documenten"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/storage"
	"github.com/open-zaak/open-zaak/backend/go-services/internal/vertrouwelijkheid"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/logger"
	"github.com/open-zaak/open-zaak/backend/go-services/pkg/validators"
)

const identificatiePrefix = "DOCUMENT"

var statussen = []interface{}{"in_bewerking", "ter_vaststelling", "definitief", "gearchiveerd"}

// Service implements the document operations on top of a documenten.Store and a
// content store for the binary inhoud.
type Service struct {
	store   documenten.Store
	content storage.ContentStore
	now     func() time.Time
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

func New(store documenten.Store, content storage.ContentStore, opts ...Option) *Service {
	s := &Service{store: store, content: content, now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Store() documenten.Store { return s.store }

func validate(e *documenten.EnkelvoudigInformatieObject) error {
	return validation.Errors{
		"identificatie":   validation.Validate(e.Identificatie, validation.Length(0, 40)),
		"bronorganisatie": validation.Validate(e.Bronorganisatie, validation.Required, validators.RSIN),
		"creatiedatum":    validation.Validate(e.CreatieDatum, validation.Required, validation.Date("2006-01-02")),
		"titel":           validation.Validate(e.Titel, validation.Required, validation.Length(1, 200)),
		"auteur":          validation.Validate(e.Auteur, validation.Required, validation.Length(1, 200)),
		"taal":            validation.Validate(e.Taal, validation.Required, validation.Length(3, 3)),
		"vertrouwelijkheidaanduiding": validation.Validate(e.Vertrouwelijkheidaanduiding,
			validation.In(vertrouwelijkheid.Values()...)),
		"status":       validation.Validate(e.Status, validation.In(statussen...)),
		"formaat":      validation.Validate(e.Formaat, validation.Length(0, 255)),
		"bestandsnaam": validation.Validate(e.Bestandsnaam, validation.Length(0, 255)),
		"link":         validation.Validate(e.Link, validation.Length(0, 200), is.URL),
		"beschrijving": validation.Validate(e.Beschrijving, validation.Length(0, 1000)),
	}.Filter()
}

// checkIdentificatie generates an identificatie when empty and otherwise makes sure
// no other document of the bronorganisatie uses it.
func (s *Service) checkIdentificatie(ctx context.Context, e *documenten.EnkelvoudigInformatieObject) error {
	existing, err := s.store.List(ctx, documenten.ListFilter{Bronorganisatie: e.Bronorganisatie})
	if err != nil {
		return err
	}
	if e.Identificatie == "" {
		e.Identificatie = nextIdentificatie(existing, e.CreatieDatum, s.now())
		return nil
	}
	for _, o := range existing {
		if o.Identificatie == e.Identificatie && o.CanonicalID != e.CanonicalID {
			return apierrors.Field("identificatie", apierrors.New("identificatie-niet-uniek",
				"Deze identificatie bestaat al voor deze bronorganisatie."))
		}
	}
	return nil
}

// nextIdentificatie returns DOCUMENT-<year>-<number>, one above the highest number in use.
func nextIdentificatie(existing []*documenten.EnkelvoudigInformatieObject, creatiedatum string, now time.Time) string {
	year := strconv.Itoa(now.Year())
	if len(creatiedatum) >= 4 {
		year = creatiedatum[:4]
	}
	prefix := identificatiePrefix + "-" + year + "-"
	highest := 0
	for _, o := range existing {
		if !strings.HasPrefix(o.Identificatie, prefix) {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimPrefix(o.Identificatie, prefix)); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("%s%010d", prefix, highest+1)
}

// contentKey is unique per write so a losing concurrent update never overwrites the
// inhoud of the stored version.
func contentKey(e *documenten.EnkelvoudigInformatieObject) string {
	return fmt.Sprintf("%s/%d/%s", e.UUID, e.Versie, uuid.NewString())
}

func (s *Service) putContent(ctx context.Context, e *documenten.EnkelvoudigInformatieObject, inhoud []byte) error {
	key := contentKey(e)
	contentType := e.Formaat
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := s.content.Put(ctx, key, bytes.NewReader(inhoud), int64(len(inhoud)), contentType); err != nil {
		return fmt.Errorf("store inhoud: %w", err)
	}
	e.InhoudKey = key
	e.Bestandsomvang = int64(len(inhoud))
	return nil
}

// Create stores e as versie 1 of a new document.
func (s *Service) Create(ctx context.Context, e *documenten.EnkelvoudigInformatieObject, inhoud []byte) error {
	if err := validate(e); err != nil {
		return err
	}
	if err := s.checkIdentificatie(ctx, e); err != nil {
		return err
	}
	canonical, err := s.store.CreateCanonical(ctx)
	if err != nil {
		return err
	}
	e.CanonicalID = canonical.ID
	e.UUID = uuid.NewString()
	e.Versie = 1
	if err := s.putContent(ctx, e, inhoud); err != nil {
		_ = s.store.DeleteCanonical(ctx, canonical.ID)
		return err
	}
	if err := s.store.AddVersion(ctx, e); err != nil {
		_ = s.store.DeleteCanonical(ctx, canonical.ID)
		s.deleteContent(ctx, e.InhoudKey)
		return err
	}
	return nil
}

// Update stores next, a Clone of the latest version, as a new version. A nil inhoud
// keeps the content of the previous version.
func (s *Service) Update(ctx context.Context, next *documenten.EnkelvoudigInformatieObject, inhoud []byte) error {
	if err := validate(next); err != nil {
		return err
	}
	if err := s.checkIdentificatie(ctx, next); err != nil {
		return err
	}
	if inhoud == nil {
		return s.store.AddVersion(ctx, next)
	}
	if err := s.putContent(ctx, next, inhoud); err != nil {
		return err
	}
	if err := s.store.AddVersion(ctx, next); err != nil {
		s.deleteContent(ctx, next.InhoudKey)
		return err
	}
	return nil
}

func (s *Service) deleteContent(ctx context.Context, key string) {
	if err := s.content.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
		logger.Warnf("delete inhoud %s: %v", key, err)
	}
}

// Get returns a version of the document; versie 0 is the latest.
func (s *Service) Get(ctx context.Context, id string, versie int) (*documenten.EnkelvoudigInformatieObject, error) {
	return s.store.Get(ctx, id, versie)
}

func (s *Service) List(ctx context.Context, f documenten.ListFilter) ([]*documenten.EnkelvoudigInformatieObject, error) {
	return s.store.List(ctx, f)
}

// Delete removes the document with all versions and their content and returns the
// latest version as it was.
func (s *Service) Delete(ctx context.Context, id string) (*documenten.EnkelvoudigInformatieObject, error) {
	latest, err := s.store.Get(ctx, id, 0)
	if err != nil {
		return nil, err
	}
	keys := map[string]bool{}
	for v := 1; v <= latest.Versie; v++ {
		e, err := s.store.Get(ctx, id, v)
		if err != nil {
			continue
		}
		if e.InhoudKey != "" {
			keys[e.InhoudKey] = true
		}
	}
	if err := s.store.DeleteCanonical(ctx, latest.CanonicalID); err != nil {
		return nil, err
	}
	for key := range keys {
		s.deleteContent(ctx, key)
	}
	return latest, nil
}

// Content returns the inhoud of a version.
func (s *Service) Content(ctx context.Context, id string, versie int) (*documenten.EnkelvoudigInformatieObject, []byte, error) {
	e, err := s.store.Get(ctx, id, versie)
	if err != nil {
		return nil, nil, err
	}
	if e.InhoudKey == "" {
		return e, []byte{}, nil
	}
	rc, err := s.content.Get(ctx, e.InhoudKey)
	if err != nil {
		return nil, nil, fmt.Errorf("inhoud of %s: %w", id, err)
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, nil, err
	}
	return e, b, nil
}
