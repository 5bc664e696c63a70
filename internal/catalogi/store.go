package catalogi

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// Store persists catalogi with gorm.
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

func (s *Store) CreateCatalogus(ctx context.Context, c *Catalogus) error {
	return s.db.WithContext(ctx).Create(c).Error
}

func (s *Store) GetCatalogus(ctx context.Context, id string) (*Catalogus, error) {
	var c Catalogus
	if err := s.db.WithContext(ctx).First(&c, "uuid = ?", id).Error; err != nil {
		return nil, notFound("catalogus", id, err)
	}
	return &c, nil
}

func (s *Store) ListCatalogi(ctx context.Context) ([]*Catalogus, error) {
	var out []*Catalogus
	err := s.db.WithContext(ctx).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) CatalogusExists(ctx context.Context, domein, rsin string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&Catalogus{}).Where("domein = ? AND rsin = ?", domein, rsin).Count(&n).Error
	return n > 0, err
}

// TypeFilter narrows list queries. Status is alles, concept or definitief.
type TypeFilter struct {
	CatalogusUUID string
	Status        string
}

func (f TypeFilter) apply(q *gorm.DB) *gorm.DB {
	if f.CatalogusUUID != "" {
		q = q.Where("catalogus_uuid = ?", f.CatalogusUUID)
	}
	switch f.Status {
	case "concept":
		q = q.Where("concept = ?", true)
	case "definitief":
		q = q.Where("concept = ?", false)
	}
	return q
}

func (s *Store) CreateInformatieObjectType(ctx context.Context, t *InformatieObjectType) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) SaveInformatieObjectType(ctx context.Context, t *InformatieObjectType) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *Store) GetInformatieObjectType(ctx context.Context, id string) (*InformatieObjectType, error) {
	var t InformatieObjectType
	if err := s.db.WithContext(ctx).First(&t, "uuid = ?", id).Error; err != nil {
		return nil, notFound("informatieobjecttype", id, err)
	}
	return &t, nil
}

func (s *Store) ListInformatieObjectTypen(ctx context.Context, f TypeFilter) ([]*InformatieObjectType, error) {
	var out []*InformatieObjectType
	err := f.apply(s.db.WithContext(ctx)).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) DeleteInformatieObjectType(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&InformatieObjectType{}, "uuid = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("informatieobjecttype %s: %w", id, apierrors.ErrNotFound)
	}
	return nil
}

// InformatieObjectTypenWithOmschrijving returns the types sharing catalogus and omschrijving.
func (s *Store) InformatieObjectTypenWithOmschrijving(ctx context.Context, catalogus, omschrijving string) ([]*InformatieObjectType, error) {
	var out []*InformatieObjectType
	err := s.db.WithContext(ctx).Where("catalogus_uuid = ? AND omschrijving = ?", catalogus, omschrijving).Find(&out).Error
	return out, err
}

func (s *Store) CreateBesluitType(ctx context.Context, t *BesluitType) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Store) SaveBesluitType(ctx context.Context, t *BesluitType) error {
	return s.db.WithContext(ctx).Save(t).Error
}

func (s *Store) GetBesluitType(ctx context.Context, id string) (*BesluitType, error) {
	var t BesluitType
	if err := s.db.WithContext(ctx).First(&t, "uuid = ?", id).Error; err != nil {
		return nil, notFound("besluittype", id, err)
	}
	return &t, nil
}

func (s *Store) ListBesluitTypen(ctx context.Context, f TypeFilter) ([]*BesluitType, error) {
	var out []*BesluitType
	err := f.apply(s.db.WithContext(ctx)).Order("created_at").Find(&out).Error
	return out, err
}

func (s *Store) DeleteBesluitType(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Delete(&BesluitType{}, "uuid = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("besluittype %s: %w", id, apierrors.ErrNotFound)
	}
	return nil
}

func (s *Store) BesluitTypenWithOmschrijving(ctx context.Context, catalogus, omschrijving string) ([]*BesluitType, error) {
	var out []*BesluitType
	err := s.db.WithContext(ctx).Where("catalogus_uuid = ? AND omschrijving = ?", catalogus, omschrijving).Find(&out).Error
	return out, err
}
