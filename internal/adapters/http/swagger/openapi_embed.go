package swagger

import _ "embed"

// OpenAPI is the embedded aidfeed API document.
//
//go:embed openapi.yaml
var OpenAPI []byte
