// Package handlers serves the OpenAPI documents of the components.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/open-zaak/open-zaak/backend/go-services/api/openapi"
)

// SchemaPath is where the document of a component is served.
func SchemaPath(component string) string {
	return fmt.Sprintf("/%s/api/v1/schema/openapi.yaml", component)
}

// RegisterSwagger registers per component:
// - GET /<component>/api/v1/schema/openapi.yaml -> the OpenAPI document
// - GET /<component>/api/v1/schema/             -> a Swagger UI page loading it
func RegisterSwagger(r *gin.Engine, components ...string) {
	if len(components) == 0 {
		components = openapi.Components
	}
	for _, component := range components {
		doc, err := openapi.Document(component)
		if err != nil {
			continue
		}
		r.GET(SchemaPath(component), func(c *gin.Context) {
			c.Data(http.StatusOK, "application/vnd.oai.openapi; charset=utf-8", doc)
		})
		page := fmt.Sprintf(swaggerHTML, component, SchemaPath(component))
		r.GET(fmt.Sprintf("/%s/api/v1/schema/", component), func(c *gin.Context) {
			c.Header("Content-Type", "text/html; charset=utf-8")
			c.String(http.StatusOK, page)
		})
	}
}

const swaggerHTML = `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Open Zaak %s API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@4/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@4/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '%s',
        dom_id: '#swagger-ui',
      })
    </script>
  </body>
</html>`
