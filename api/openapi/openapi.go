// Package openapi embeds the OpenAPI documents of the components served by this module.
package openapi

import (
	"embed"
	"fmt"
)

//go:embed *.yaml
var files embed.FS

// Components lists the component names that have a document.
var Components = []string{"documenten", "besluiten", "catalogi", "zaken"}

// Document returns the YAML document of a component.
func Document(component string) ([]byte, error) {
	b, err := files.ReadFile(component + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("openapi: no document for %q", component)
	}
	return b, nil
}
