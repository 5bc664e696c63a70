package loosefk

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/open-zaak/open-zaak/backend/go-services/pkg/apierrors"
)

func jsonContext(body string) *gin.Context {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	return c
}

func TestBindJSON(t *testing.T) {
	var req struct {
		Titel string `json:"titel"`
	}
	raw, err := BindJSON(jsonContext(`{"titel": "x", "besluittype": null}`), &req)
	require.NoError(t, err)
	assert.Equal(t, "x", req.Titel)
	v, present := raw["besluittype"]
	assert.True(t, present)
	assert.Nil(t, v)

	raw, err = BindJSON(jsonContext(`{"informatieobject": "http://testserver/x"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, "http://testserver/x", raw["informatieobject"])

	_, err = BindJSON(jsonContext(`{"titel": `), nil)
	params := apierrors.InvalidParams(err)
	require.Len(t, params, 1)
	assert.Equal(t, "parse_error", params[0].Code)
}
