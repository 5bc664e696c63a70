// Package autorisaties decides which client applications may do what.
package autorisaties

const (
	ComponentZRC = "zrc"
	ComponentDRC = "drc"
	ComponentBRC = "brc"
	ComponentZTC = "ztc"
	ComponentAC  = "ac"
	ComponentNRC = "nrc"
)

const (
	ScopeDocumentenLezen       = "documenten.lezen"
	ScopeDocumentenAanmaken    = "documenten.aanmaken"
	ScopeDocumentenBijwerken   = "documenten.bijwerken"
	ScopeDocumentenVerwijderen = "documenten.verwijderen"
	ScopeBesluitenLezen        = "besluiten.lezen"
	ScopeBesluitenAanmaken     = "besluiten.aanmaken"
	ScopeBesluitenVerwijderen  = "besluiten.verwijderen"
	ScopeCatalogiLezen         = "catalogi.lezen"
	ScopeCatalogiSchrijven     = "catalogi.schrijven"
)

// Applicatie is a client application, identified by one or more client ids.
type Applicatie struct {
	UUID                  string        `gorm:"primaryKey;size:36" json:"uuid"`
	ClientIDs             []string      `gorm:"serializer:json" json:"clientIds"`
	Label                 string        `gorm:"size:100" json:"label"`
	HeeftAlleAutorisaties bool          `json:"heeftAlleAutorisaties"`
	Autorisaties          []Autorisatie `gorm:"foreignKey:ApplicatieUUID;constraint:OnDelete:CASCADE" json:"autorisaties"`
}

func (Applicatie) TableName() string { return "autorisaties_applicatie" }

// Autorisatie grants scopes on one component, limited to a type and a maximum
// vertrouwelijkheidaanduiding where the component has those.
type Autorisatie struct {
	ID                             uint     `gorm:"primaryKey" json:"-"`
	ApplicatieUUID                 string   `gorm:"size:36;index" json:"-"`
	Component                      string   `gorm:"size:50" json:"component"`
	Scopes                         []string `gorm:"serializer:json" json:"scopes"`
	ZaakType                       string   `gorm:"size:1000" json:"zaaktype,omitempty"`
	InformatieObjectType           string   `gorm:"size:1000" json:"informatieobjecttype,omitempty"`
	BesluitType                    string   `gorm:"size:1000" json:"besluittype,omitempty"`
	MaxVertrouwelijkheidaanduiding string   `gorm:"size:20" json:"maxVertrouwelijkheidaanduiding,omitempty"`
}

func (Autorisatie) TableName() string { return "autorisaties_autorisatie" }

// TypeURL returns the type the autorisatie is limited to for its component.
func (a Autorisatie) TypeURL() string {
	switch a.Component {
	case ComponentZRC:
		return a.ZaakType
	case ComponentDRC:
		return a.InformatieObjectType
	case ComponentBRC:
		return a.BesluitType
	}
	return ""
}

func (a *Autorisatie) setTypeURL(u string) {
	switch a.Component {
	case ComponentZRC:
		a.ZaakType = u
	case ComponentDRC:
		a.InformatieObjectType = u
	case ComponentBRC:
		a.BesluitType = u
	}
}

func (a Autorisatie) HasScope(scope string) bool {
	for _, s := range a.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}

// AutorisatieSpec installs Autorisaties for every type of a component.
type AutorisatieSpec struct {
	ID                             uint     `gorm:"primaryKey" json:"-"`
	ApplicatieUUID                 string   `gorm:"size:36;uniqueIndex:idx_spec_app_component" json:"applicatie"`
	Component                      string   `gorm:"size:50;uniqueIndex:idx_spec_app_component" json:"component"`
	Scopes                         []string `gorm:"serializer:json" json:"scopes"`
	MaxVertrouwelijkheidaanduiding string   `gorm:"size:20" json:"maxVertrouwelijkheidaanduiding"`
}

func (AutorisatieSpec) TableName() string { return "autorisaties_autorisatiespec" }

// JWTSecret is the shared secret of a client id.
type JWTSecret struct {
	Identifier string `gorm:"primaryKey;size:50"`
	Secret     string `gorm:"size:255"`
}

func (JWTSecret) TableName() string { return "autorisaties_jwtsecret" }

func Models() []interface{} {
	return []interface{}{&Applicatie{}, &Autorisatie{}, &AutorisatieSpec{}, &JWTSecret{}}
}
