// Package catalogi manages the catalogue types documents and decisions refer to.
package catalogi

import "time"

const (
	RouteCatalogus            = "catalogus-detail"
	RouteInformatieObjectType = "informatieobjecttype-detail"
	RouteBesluitType          = "besluittype-detail"
)

type Catalogus struct {
	UUID                     string    `gorm:"primaryKey;size:36"`
	Domein                   string    `gorm:"size:5;uniqueIndex:idx_catalogus_domein_rsin"`
	RSIN                     string    `gorm:"size:9;uniqueIndex:idx_catalogus_domein_rsin"`
	ContactpersoonBeheerNaam string    `gorm:"size:40"`
	CreatedAt                time.Time
}

func (Catalogus) TableName() string { return "catalogi_catalogus" }

func (c *Catalogus) RouteName() string { return RouteCatalogus }
func (c *Catalogus) RouteParams() map[string]string {
	return map[string]string{"uuid": c.UUID}
}

// Geldigheid is the validity period shared by all types. Dates are YYYY-MM-DD.
type Geldigheid struct {
	BeginGeldigheid string  `gorm:"size:10;not null"`
	EindeGeldigheid *string `gorm:"size:10"`
}

// Overlaps reports whether both periods share at least one day. A missing end is open.
func (g Geldigheid) Overlaps(o Geldigheid) bool {
	if g.EindeGeldigheid != nil && *g.EindeGeldigheid < o.BeginGeldigheid {
		return false
	}
	if o.EindeGeldigheid != nil && *o.EindeGeldigheid < g.BeginGeldigheid {
		return false
	}
	return true
}

type InformatieObjectType struct {
	UUID                        string `gorm:"primaryKey;size:36"`
	CatalogusUUID               string `gorm:"size:36;index"`
	Omschrijving                string `gorm:"size:80"`
	Vertrouwelijkheidaanduiding string `gorm:"size:20"`
	Geldigheid                  `gorm:"embedded"`
	Concept                     bool
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

func (InformatieObjectType) TableName() string { return "catalogi_informatieobjecttype" }

func (t *InformatieObjectType) RouteName() string { return RouteInformatieObjectType }
func (t *InformatieObjectType) RouteParams() map[string]string {
	return map[string]string{"uuid": t.UUID}
}

type BesluitType struct {
	UUID                  string   `gorm:"primaryKey;size:36"`
	CatalogusUUID         string   `gorm:"size:36;index"`
	Omschrijving          string   `gorm:"size:80"`
	PublicatieIndicatie   bool
	InformatieObjectTypen []string `gorm:"serializer:json"`
	Geldigheid            `gorm:"embedded"`
	Concept               bool
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (BesluitType) TableName() string { return "catalogi_besluittype" }

func (t *BesluitType) RouteName() string { return RouteBesluitType }
func (t *BesluitType) RouteParams() map[string]string {
	return map[string]string{"uuid": t.UUID}
}

// AllowsInformatieObjectType reports whether documents of the given local type may be
// attached to decisions of this type.
func (t *BesluitType) AllowsInformatieObjectType(iotUUID string) bool {
	for _, u := range t.InformatieObjectTypen {
		if u == iotUUID {
			return true
		}
	}
	return false
}

// Models lists the tables to migrate.
func Models() []interface{} {
	return []interface{}{&Catalogus{}, &InformatieObjectType{}, &BesluitType{}}
}
