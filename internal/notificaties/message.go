// Package notificaties publishes ZGW notifications about created, changed and
// destroyed resources and keeps the ones that could not be delivered.
package notificaties

import "time"

const (
	ActieCreate  = "create"
	ActieUpdate  = "update"
	ActiePartial = "partial_update"
	ActieDestroy = "destroy"
)

// Message is the body posted to the notification routing component.
type Message struct {
	Kanaal       string            `json:"kanaal" bson:"kanaal"`
	HoofdObject  string            `json:"hoofdObject" bson:"hoofdObject"`
	Resource     string            `json:"resource" bson:"resource"`
	ResourceURL  string            `json:"resourceUrl" bson:"resourceUrl"`
	Actie        string            `json:"actie" bson:"actie"`
	Aanmaakdatum time.Time         `json:"aanmaakdatum" bson:"aanmaakdatum"`
	Kenmerken    map[string]string `json:"kenmerken" bson:"kenmerken"`
}
