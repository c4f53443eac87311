// Package docs регистрирует описание API для swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/products/{id}/sessions": {
            "post": {
                "tags": ["editor"],
                "summary": "Open editor session",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "tab", "in": "query"},
                    {"type": "string", "name": "X-Shop-ID", "in": "header", "required": true}
                ],
                "responses": {"201": {"description": "Created"}, "404": {"description": "Not Found"}, "410": {"description": "Gone"}}
            }
        },
        "/api/v1/products/{id}/history": {
            "get": {
                "tags": ["history"],
                "summary": "Audit trail of a product",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {"200": {"description": "OK"}, "501": {"description": "Audit store disabled"}}
            }
        },
        "/api/v1/sessions/{sid}": {
            "get": {"tags": ["editor"], "summary": "Session view", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "delete": {"tags": ["editor"], "summary": "Close session", "responses": {"204": {"description": "No Content"}}}
        },
        "/api/v1/sessions/{sid}/sections/{section}": {
            "patch": {"tags": ["editor"], "summary": "Edit section fields", "responses": {"200": {"description": "OK"}, "400": {"description": "Unknown section"}}}
        },
        "/api/v1/sessions/{sid}/sections/{section}/diff": {
            "get": {"tags": ["editor"], "summary": "Unsaved changes of a section", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/sessions/{sid}/sections/{section}/save": {
            "post": {
                "tags": ["editor"],
                "summary": "Save section",
                "responses": {
                    "200": {"description": "OK"},
                    "207": {"description": "Saved, some uploads failed"},
                    "409": {"description": "Save in progress or conflict"},
                    "410": {"description": "Product no longer exists"},
                    "422": {"description": "Validation failed"},
                    "502": {"description": "Catalog unavailable"}
                }
            }
        },
        "/api/v1/sessions/{sid}/sections/{section}/items/{item}/save": {
            "post": {"tags": ["editor"], "summary": "Save one keyed list item", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/sessions/{sid}/sections/{section}/uploads": {
            "post": {"tags": ["editor"], "summary": "Stage files", "consumes": ["multipart/form-data"], "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/sessions/{sid}/sections/{section}/uploads/{ref}": {
            "delete": {"tags": ["editor"], "summary": "Remove staged file", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/sessions/{sid}/navigation": {
            "post": {"tags": ["navigation"], "summary": "Request navigation", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/sessions/{sid}/navigation/resolve": {
            "post": {"tags": ["navigation"], "summary": "Resolve unsaved changes dialog", "responses": {"200": {"description": "OK"}, "409": {"description": "No pending intent"}, "422": {"description": "Validation failed or some files were not uploaded"}}}
        },
        "/api/v1/sessions/{sid}/unload": {
            "get": {"tags": ["navigation"], "summary": "Whether leaving the page needs confirmation", "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/browsers": {
            "post": {"tags": ["browser"], "summary": "Open category or brand browser", "responses": {"201": {"description": "Created"}}}
        },
        "/api/v1/browsers/{bid}": {
            "get": {"tags": ["browser"], "summary": "Browser view", "responses": {"200": {"description": "OK"}}}
        },
        "/ws/sessions/{sid}": {
            "get": {"tags": ["notifications"], "summary": "Session notifications over WebSocket", "responses": {"101": {"description": "Switching Protocols"}}}
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "gomarket-admin editor API",
	Description:      "Product editor sessions: unsaved changes, section saves, navigation guard.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
