package autorisaties

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store { return &Store{db: db} }

// Secret implements tokens.SecretStore.
func (s *Store) Secret(ctx context.Context, clientID string) (string, error) {
	var js JWTSecret
	if err := s.db.WithContext(ctx).First(&js, "identifier = ?", clientID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("client %s: %w", clientID, apierrors.ErrNotFound)
		}
		return "", err
	}
	return js.Secret, nil
}

func (s *Store) SetSecret(ctx context.Context, clientID, secret string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&JWTSecret{Identifier: clientID, Secret: secret}).Error
}

func (s *Store) CreateApplicatie(ctx context.Context, a *Applicatie) error {
	return s.db.WithContext(ctx).Create(a).Error
}

func (s *Store) ListApplicaties(ctx context.Context) ([]*Applicatie, error) {
	var out []*Applicatie
	err := s.db.WithContext(ctx).Preload("Autorisaties").Find(&out).Error
	return out, err
}

// ApplicatieForClient returns the applicatie whose client ids contain clientID.
func (s *Store) ApplicatieForClient(ctx context.Context, clientID string) (*Applicatie, error) {
	apps, err := s.ListApplicaties(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range apps {
		for _, id := range a.ClientIDs {
			if id == clientID {
				return a, nil
			}
		}
	}
	return nil, fmt.Errorf("applicatie for %s: %w", clientID, apierrors.ErrNotFound)
}

func (s *Store) SaveSpec(ctx context.Context, spec *AutorisatieSpec) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "applicatie_uuid"}, {Name: "component"}},
		DoUpdates: clause.AssignmentColumns([]string{"scopes", "max_vertrouwelijkheidaanduiding"}),
	}).Create(spec).Error
}

func (s *Store) ListSpecs(ctx context.Context) ([]*AutorisatieSpec, error) {
	var out []*AutorisatieSpec
	err := s.db.WithContext(ctx).Order("id").Find(&out).Error
	return out, err
}

func (s *Store) autorisatiesFor(ctx context.Context, applicatie, component string) ([]Autorisatie, error) {
	var out []Autorisatie
	err := s.db.WithContext(ctx).Where("applicatie_uuid = ? AND component = ?", applicatie, component).Order("id").Find(&out).Error
	return out, err
}

// applySync deletes and creates autorisaties in one transaction.
func (s *Store) applySync(ctx context.Context, remove []uint, add []Autorisatie) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(remove) > 0 {
			if err := tx.Delete(&Autorisatie{}, remove).Error; err != nil {
				return err
			}
		}
		if len(add) > 0 {
			if err := tx.Create(&add).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
