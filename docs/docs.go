// Package docs contains the swag-generated OpenAPI spec for the
// Leadpipe API. Regenerate with `swag init -g cmd/api/main.go -o docs`
// after changing any handler's swaggo annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Platform Team",
            "email": "platform@leadpipe.example.com"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {}
}`

// SwaggerInfo holds exported Swagger Info so other packages can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Leadpipe API",
	Description:      "Real-estate lead ingestion and CRM-attribution pipeline - ingests heterogeneous CSV feeds, normalizes and deduplicates leads, and probabilistically matches them against a synchronized Follow Up Boss CRM dataset.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
