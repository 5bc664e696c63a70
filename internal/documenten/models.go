// Package documenten holds the versioned documents (enkelvoudige informatieobjecten)
// of the Documenten API.
package documenten

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

const RouteEnkelvoudigInformatieObject = "enkelvoudiginformatieobject-detail"

var (
	ErrNotFound = fmt.Errorf("informatieobject %w", apierrors.ErrNotFound)
	// ErrNoVersions means a canonical document exists without any version.
	ErrNoVersions = errors.New("canonical document has no versions")
	// ErrVersionConflict means another update stored the same versie first.
	ErrVersionConflict = fmt.Errorf("informatieobject versie %w", apierrors.ErrConflict)
)

// Canonical is the identity of a document across its versions. Relations such as
// besluitinformatieobjecten point at the canonical, never at a version.
type Canonical struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

// EnkelvoudigInformatieObject is one version of a document. All versions of a
// document share UUID; Versie starts at 1.
type EnkelvoudigInformatieObject struct {
	PK          string `json:"-" bson:"_id,omitempty"`
	CanonicalID string `json:"-" bson:"canonical"`
	UUID        string `json:"uuid" bson:"uuid"`
	Versie      int    `json:"versie" bson:"versie"`

	Identificatie               string `json:"identificatie" bson:"identificatie"`
	Bronorganisatie             string `json:"bronorganisatie" bson:"bronorganisatie"`
	CreatieDatum                string `json:"creatiedatum" bson:"creatiedatum"`
	Titel                       string `json:"titel" bson:"titel"`
	Vertrouwelijkheidaanduiding string `json:"vertrouwelijkheidaanduiding" bson:"vertrouwelijkheidaanduiding"`
	Auteur                      string `json:"auteur" bson:"auteur"`
	Status                      string `json:"status" bson:"status"`
	Formaat                     string `json:"formaat" bson:"formaat"`
	Taal                        string `json:"taal" bson:"taal"`
	Bestandsnaam                string `json:"bestandsnaam" bson:"bestandsnaam"`
	Link                        string `json:"link" bson:"link"`
	Beschrijving                string `json:"beschrijving" bson:"beschrijving"`

	InhoudKey      string `json:"-" bson:"inhoudKey"`
	Bestandsomvang int64  `json:"bestandsomvang" bson:"bestandsomvang"`

	// Local informatieobjecttypen are stored by UUID, remote ones by URL.
	InformatieObjectTypeUUID string `json:"-" bson:"informatieobjecttypeUUID,omitempty"`
	InformatieObjectType     string `json:"-" bson:"informatieobjecttype,omitempty"`

	BeginRegistratie time.Time `json:"beginRegistratie" bson:"beginRegistratie"`
}

func (e *EnkelvoudigInformatieObject) RouteName() string { return RouteEnkelvoudigInformatieObject }
func (e *EnkelvoudigInformatieObject) RouteParams() map[string]string {
	return map[string]string{"uuid": e.UUID}
}

// Clone returns a copy without storage identity, ready to be saved as the next version.
func (e *EnkelvoudigInformatieObject) Clone() *EnkelvoudigInformatieObject {
	c := *e
	c.PK = ""
	c.Versie = e.Versie + 1
	c.BeginRegistratie = time.Time{}
	return &c
}

// ListFilter narrows List. Empty fields are ignored.
type ListFilter struct {
	Bronorganisatie string
	Identificatie   string
}

func (f ListFilter) Matches(e *EnkelvoudigInformatieObject) bool {
	if f.Bronorganisatie != "" && e.Bronorganisatie != f.Bronorganisatie {
		return false
	}
	if f.Identificatie != "" && e.Identificatie != f.Identificatie {
		return false
	}
	return true
}

// Store persists canonicals and their versions.
type Store interface {
	// CreateCanonical creates an empty canonical document.
	CreateCanonical(ctx context.Context) (*Canonical, error)
	GetCanonical(ctx context.Context, id string) (*Canonical, error)
	// AddVersion stores e under its canonical and assigns PK and BeginRegistratie.
	// It returns ErrVersionConflict when the versie is taken.
	AddVersion(ctx context.Context, e *EnkelvoudigInformatieObject) error
	// LatestVersion returns the version with the highest Versie, or ErrNoVersions.
	LatestVersion(ctx context.Context, canonicalID string) (*EnkelvoudigInformatieObject, error)
	// Get returns version versie of the document with uuid; versie 0 means the latest.
	Get(ctx context.Context, uuid string, versie int) (*EnkelvoudigInformatieObject, error)
	// List returns the latest version of every document.
	List(ctx context.Context, f ListFilter) ([]*EnkelvoudigInformatieObject, error)
	// DeleteCanonical removes the canonical and all its versions.
	DeleteCanonical(ctx context.Context, id string) error
}
