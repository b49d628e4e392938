// Package docs registers the promptd OpenAPI document with swag. It is
// imported only by builds with -tags=swagger. Regenerate with
// `swag init -g cmd/promptd/docs.go -o docs`.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "license": {"name": "MIT", "url": "https://opensource.org/licenses/MIT"},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/models": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "List catalog models",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ModelsResponse"}}}
            }
        },
        "/models/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Describe one model, including GGUF header metadata when downloaded",
                "parameters": [{"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.Model"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            },
            "delete": {
                "tags": ["models"],
                "summary": "Cancel any download and remove a model's files",
                "parameters": [{"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/models/{id}/download": {
            "post": {
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Start downloading a model in the background",
                "parameters": [{"type": "string", "description": "Model id", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/types.Model"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/select": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["models"],
                "summary": "Select the model used for completions",
                "parameters": [{"description": "Model to select", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.SelectRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SelectRequest"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/infer": {
            "post": {
                "description": "Lines are {\"delta\":\"...\"} followed by {\"done\":true,\"content\":\"...\"} or a single {\"error\":\"...\"}. A model that is not downloaded answers 409 and starts downloading.",
                "consumes": ["application/json"],
                "produces": ["application/x-ndjson"],
                "tags": ["inference"],
                "summary": "Stream a completion as NDJSON",
                "parameters": [{"description": "Completion request", "name": "body", "in": "body", "required": true, "schema": {"$ref": "#/definitions/types.InferRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.InferChunk"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/types.ErrorResponse"}},
                    "503": {"description": "Service Unavailable", "schema": {"$ref": "#/definitions/types.ErrorResponse"}}
                }
            }
        },
        "/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Manager and session status",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.StatusResponse"}}}
            }
        },
        "/sanity": {
            "get": {
                "produces": ["application/json"],
                "tags": ["status"],
                "summary": "Report discovery of llama.cpp tools",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.SanityReport"}}}
            }
        }
    },
    "definitions": {
        "types.ArtifactInfo": {
            "type": "object",
            "properties": {
                "architecture": {"type": "string"},
                "file_type": {"type": "string"},
                "name": {"type": "string"},
                "parameters": {"type": "string"}
            }
        },
        "types.BinaryCheck": {
            "type": "object",
            "properties": {
                "found": {"type": "boolean"},
                "hint": {"type": "string"},
                "path": {"type": "string"},
                "role": {"type": "string", "example": "llama-server"}
            }
        },
        "types.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "integer", "example": 400},
                "error": {"type": "string", "example": "invalid JSON body"}
            }
        },
        "types.InferChunk": {
            "type": "object",
            "properties": {
                "content": {"type": "string"},
                "delta": {"type": "string"},
                "done": {"type": "boolean"},
                "error": {"type": "string"}
            }
        },
        "types.InferRequest": {
            "type": "object",
            "properties": {
                "clipboard": {"type": "string"},
                "frontmost_app": {"type": "string", "example": "Terminal"},
                "max_tokens": {"type": "integer", "example": 128},
                "model": {"type": "string", "example": "phi-1.5-q4"},
                "prompt": {"type": "string", "example": "Summarize the clipboard."},
                "temperature": {"type": "number", "example": 0.7},
                "top_p": {"type": "number", "example": 0.9}
            }
        },
        "types.Model": {
            "type": "object",
            "properties": {
                "artifact": {"$ref": "#/definitions/types.ArtifactInfo"},
                "error": {"type": "string"},
                "format": {"type": "string", "example": "native"},
                "id": {"type": "string", "example": "phi-1.5-q4"},
                "license": {"type": "string"},
                "name": {"type": "string", "example": "Phi-1.5 (Q4_K_M)"},
                "path": {"type": "string"},
                "quant": {"type": "string", "example": "Q4_K_M"},
                "repo": {"type": "string", "example": "TheBloke/phi-1_5-GGUF"},
                "size": {"type": "string", "example": "918 MB"},
                "size_bytes": {"type": "integer", "example": 918000000},
                "state": {"type": "string", "example": "ready"},
                "status": {"type": "string", "example": "Ready"}
            }
        },
        "types.ModelsResponse": {
            "type": "object",
            "properties": {
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}},
                "selected": {"type": "string"}
            }
        },
        "types.SanityReport": {
            "type": "object",
            "properties": {
                "binaries": {"type": "array", "items": {"$ref": "#/definitions/types.BinaryCheck"}},
                "inprocess_available": {"type": "boolean"},
                "models_dir": {"type": "string"},
                "ok": {"type": "boolean"},
                "strategy": {"type": "string"}
            }
        },
        "types.SelectRequest": {
            "type": "object",
            "properties": {
                "model": {"type": "string", "example": "tinyllama-1.1b-q4"}
            }
        },
        "types.ServerStatus": {
            "type": "object",
            "properties": {
                "ctx_size": {"type": "integer"},
                "gpu_layers": {"type": "integer"},
                "model_path": {"type": "string"},
                "pid": {"type": "integer"},
                "port": {"type": "integer", "example": 50951},
                "ready": {"type": "boolean"},
                "running": {"type": "boolean"}
            }
        },
        "types.StatusResponse": {
            "type": "object",
            "properties": {
                "active": {"type": "string"},
                "downloads_total": {"type": "integer"},
                "evictions_total": {"type": "integer"},
                "idle_timeout_seconds": {"type": "integer", "example": 90},
                "inflight": {"type": "integer"},
                "models": {"type": "array", "items": {"$ref": "#/definitions/types.Model"}},
                "selected": {"type": "string", "example": "phi-1.5-q4"},
                "server": {"$ref": "#/definitions/types.ServerStatus"},
                "server_time_unix": {"type": "integer"},
                "strategy": {"type": "string", "example": "server"},
                "uptime_seconds": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "promptd API",
	Description:      "HTTP API for local model lifecycle management and streamed completions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
