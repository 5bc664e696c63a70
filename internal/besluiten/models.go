// Package besluiten records decisions (besluiten) and the documents they are based on.
package besluiten

import "time"

const (
	RouteBesluit                 = "besluit-detail"
	RouteBesluitInformatieObject = "besluitinformatieobject-detail"
)

const (
	VervalredenTijdelijk                 = "tijdelijk"
	VervalredenIngetrokkenOverheid       = "ingetrokken_overheid"
	VervalredenIngetrokkenBelanghebbende = "ingetrokken_belanghebbende"
)

var vervalredenen = []interface{}{
	VervalredenTijdelijk, VervalredenIngetrokkenOverheid, VervalredenIngetrokkenBelanghebbende,
}

// Besluit is a decision of a verantwoordelijke organisatie. Local besluittypen are
// stored by UUID, remote ones by URL.
type Besluit struct {
	UUID                         string  `gorm:"primaryKey;size:36"`
	Identificatie                string  `gorm:"size:50;uniqueIndex:idx_besluit_org_identificatie"`
	VerantwoordelijkeOrganisatie string  `gorm:"size:9;uniqueIndex:idx_besluit_org_identificatie"`
	BesluitTypeUUID              string  `gorm:"size:36;index"`
	BesluitType                  string  `gorm:"size:1000"`
	Zaak                         string  `gorm:"size:1000"`
	Datum                        string  `gorm:"size:10"`
	Toelichting                  string
	Bestuursorgaan               string  `gorm:"size:50"`
	Ingangsdatum                 string  `gorm:"size:10"`
	Vervaldatum                  *string `gorm:"size:10"`
	Vervalreden                  string  `gorm:"size:30"`
	Publicatiedatum              *string `gorm:"size:10"`
	Verzenddatum                 *string `gorm:"size:10"`
	UiterlijkeReactiedatum       *string `gorm:"size:10"`
	CreatedAt                    time.Time
}

func (Besluit) TableName() string { return "besluiten_besluit" }

func (b *Besluit) RouteName() string { return RouteBesluit }
func (b *Besluit) RouteParams() map[string]string {
	return map[string]string{"uuid": b.UUID}
}

// BesluitInformatieObject links a besluit to a document. A local document is stored
// as its canonical id so the link follows new versions; a remote one as its URL.
type BesluitInformatieObject struct {
	UUID             string `gorm:"primaryKey;size:36"`
	BesluitUUID      string `gorm:"size:36;index"`
	Canonical        string `gorm:"size:36;index"`
	InformatieObject string `gorm:"size:1000"`
	CreatedAt        time.Time
}

func (BesluitInformatieObject) TableName() string { return "besluiten_besluitinformatieobject" }

func (b *BesluitInformatieObject) RouteName() string { return RouteBesluitInformatieObject }
func (b *BesluitInformatieObject) RouteParams() map[string]string {
	return map[string]string{"uuid": b.UUID}
}

// SameDocument reports whether both links point at the same document.
func (b *BesluitInformatieObject) SameDocument(o *BesluitInformatieObject) bool {
	if b.Canonical != "" || o.Canonical != "" {
		return b.Canonical == o.Canonical
	}
	return b.InformatieObject == o.InformatieObject
}

func Models() []interface{} {
	return []interface{}{&Besluit{}, &BesluitInformatieObject{}}
}
