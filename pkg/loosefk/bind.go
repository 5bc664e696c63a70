package loosefk

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

// BindJSON decodes the request body into v and also returns it as a map, so
// reference fields can tell an absent attribute from null. A nil v only yields the map.
func BindJSON(c *gin.Context, v any) (map[string]any, error) {
	body, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, apierrors.NonField("parse_error", "Ongeldige JSON.")
	}
	if v == nil {
		return raw, nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return nil, apierrors.NonField("parse_error", err.Error())
	}
	return raw, nil
}
