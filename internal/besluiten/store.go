package besluiten

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// Store persists besluiten with gorm.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

func notFound(kind, id string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %s: %w", kind, id, apierrors.ErrNotFound)
	}
	return err
}

// BesluitFilter narrows ListBesluiten. Empty fields are ignored.
type BesluitFilter struct {
	VerantwoordelijkeOrganisatie string
	Identificatie                string
	Zaak                         string
}

func (f BesluitFilter) apply(q *gorm.DB) *gorm.DB {
	if f.VerantwoordelijkeOrganisatie != "" {
		q = q.Where("verantwoordelijke_organisatie = ?", f.VerantwoordelijkeOrganisatie)
	}
	if f.Identificatie != "" {
		q = q.Where("identificatie = ?", f.Identificatie)
	}
	if f.Zaak != "" {
		q = q.Where("zaak = ?", f.Zaak)
	}
	return q
}

func (s *Store) CreateBesluit(ctx context.Context, b *Besluit) error {
	return s.db.WithContext(ctx).Create(b).Error
}

func (s *Store) GetBesluit(ctx context.Context, id string) (*Besluit, error) {
	var b Besluit
	if err := s.db.WithContext(ctx).First(&b, "uuid = ?", id).Error; err != nil {
		return nil, notFound("besluit", id, err)
	}
	return &b, nil
}

func (s *Store) ListBesluiten(ctx context.Context, f BesluitFilter) ([]*Besluit, error) {
	var out []*Besluit
	err := f.apply(s.db.WithContext(ctx)).Order("created_at").Find(&out).Error
	return out, err
}

// Identificaties returns the identificaties in use by an organisatie.
func (s *Store) Identificaties(ctx context.Context, organisatie string) ([]string, error) {
	var out []string
	err := s.db.WithContext(ctx).Model(&Besluit{}).
		Where("verantwoordelijke_organisatie = ?", organisatie).
		Pluck("identificatie", &out).Error
	return out, err
}

// DeleteBesluit removes the besluit together with its informatieobject links.
func (s *Store) DeleteBesluit(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&BesluitInformatieObject{}, "besluit_uuid = ?", id).Error; err != nil {
			return err
		}
		res := tx.Delete(&Besluit{}, "uuid = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("besluit %s: %w", id, apierrors.ErrNotFound)
		}
		return nil
	})
}

// LinkFilter narrows ListLinks. Canonical and InformatieObject select a local and a
// remote document respectively.
type LinkFilter struct {
	BesluitUUID      string
	Canonical        string
	InformatieObject string
}

func (f LinkFilter) apply(q *gorm.DB) *gorm.DB {
	if f.BesluitUUID != "" {
		q = q.Where("besluit_uuid = ?", f.BesluitUUID)
	}
	if f.Canonical != "" {
		q = q.Where("canonical = ?", f.Canonical)
	}
	if f.InformatieObject != "" {
		q = q.Where("informatie_object = ?", f.InformatieObject)
	}
	return q
}

func (s *Store) CreateLink(ctx context.Context, l *BesluitInformatieObject) error {
	return s.db.WithContext(ctx).Create(l).Error
}

func (s *Store) GetLink(ctx context.Context, id string) (*BesluitInformatieObject, error) {
	var l BesluitInformatieObject
	if err := s.db.WithContext(ctx).First(&l, "uuid = ?", id).Error; err != nil {
		return nil, notFound("besluitinformatieobject", id, err)
	}
	return &l, nil
}

func (s *Store) ListLinks(ctx context.Context, f LinkFilter) ([]*BesluitInformatieObject, error) {
	var out []*BesluitInformatieObject
	err := f.apply(s.db.WithContext(ctx)).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&BesluitInformatieObject{}, "uuid = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("besluitinformatieobject %s: %w", id, apierrors.ErrNotFound)
	}
	return nil
}

// HasLinks reports whether any besluit refers to the local document canonical.
func (s *Store) HasLinks(ctx context.Context, canonical string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&BesluitInformatieObject{}).Where("canonical = ?", canonical).Count(&n).Error
	return n > 0, err
}
