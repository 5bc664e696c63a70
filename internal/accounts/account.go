package accounts

import "time"

// Account is an admin user, mapped from the claims of the OIDC provider.
type Account struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Sub       string    `bson:"sub" json:"sub"` // OIDC subject
	Username  string    `bson:"username,omitempty" json:"username,omitempty"`
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	Groups    []string  `bson:"groups" json:"groups"`
	LastLogin time.Time `bson:"lastLogin" json:"lastLogin"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// InGroup reports whether the account is member of group. Keycloak prefixes group paths with "/".
func (a *Account) InGroup(group string) bool {
	for _, g := range a.Groups {
		if g == group || g == "/"+group {
			return true
		}
	}
	return false
}
