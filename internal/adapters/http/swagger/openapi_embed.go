package swagger

import _ "embed"

// OpenAPI contains the embedded OpenAPI YAML specification. Its info.version
// is the VersionPlaceholder until Register substitutes the model version.
//
//go:embed openapi.yaml
var OpenAPI []byte
