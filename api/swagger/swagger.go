package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Timetable API",
        "description": "Timetable generation, validation and publishing for college course units",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [
        {"BearerAuth": []}
    ],
    "tags": [
        {"name": "Timetable", "description": "Pre-flight checks, reference data and lecturer views"},
        {"name": "Timetable Runs", "description": "Run lifecycle: generate, validate, publish, delete"},
        {"name": "Timetable Entries", "description": "Manual edits of generated entries"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "security": [],
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "security": [],
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Database or Redis unreachable"}
                }
            }
        },
        "/timetable/reference": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Reference data for an empty grid",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/validate": {
            "post": {
                "tags": ["Timetable"],
                "summary": "Validate a scope without creating a run",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ValidateScopeRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/me": {
            "get": {
                "tags": ["Timetable"],
                "summary": "Published entries of a lecturer",
                "parameters": [
                    {"name": "lecturer_id", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs": {
            "get": {
                "tags": ["Timetable Runs"],
                "summary": "List runs",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["draft", "generated", "published"]},
                    {"name": "course_id", "in": "query", "type": "string"},
                    {"name": "academic_year", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Timetable Runs"],
                "summary": "Generate a timetable for a scope",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GenerateRunRequest"}}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Generation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs/{id}": {
            "get": {
                "tags": ["Timetable Runs"],
                "summary": "Get run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Timetable Runs"],
                "summary": "Delete an unpublished run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/timetable/runs/{id}/generate": {
            "post": {
                "tags": ["Timetable Runs"],
                "summary": "Regenerate an existing run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run already published", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Generation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs/{id}/validate": {
            "post": {
                "tags": ["Timetable Runs"],
                "summary": "Validate the scope of a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs/{id}/publish": {
            "post": {
                "tags": ["Timetable Runs"],
                "summary": "Publish a generated run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run is not generated", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs/{id}/entries": {
            "get": {
                "tags": ["Timetable Runs"],
                "summary": "List entries of a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/runs/{id}/grid": {
            "get": {
                "tags": ["Timetable Runs"],
                "summary": "Grid view of a run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "mode", "in": "query", "type": "string", "enum": ["course", "lecturer", "classroom"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Unknown mode", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/timetable/entries/{id}": {
            "patch": {
                "tags": ["Timetable Entries"],
                "summary": "Edit an entry of a generated run",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EditEntryRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Run not editable or slot conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "GenerateRunRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "academic_year": {"type": "string"},
                "semester": {"type": "integer"},
                "notes": {"type": "string"}
            },
            "required": ["academic_year", "semester"]
        },
        "ValidateScopeRequest": {
            "type": "object",
            "properties": {
                "course_id": {"type": "string"},
                "academic_year": {"type": "string"},
                "semester": {"type": "integer"}
            },
            "required": ["semester"]
        },
        "EditEntryRequest": {
            "type": "object",
            "properties": {
                "day_id": {"type": "string"},
                "time_slot_id": {"type": "string"},
                "classroom_id": {"type": "string"},
                "lecturer_id": {"type": "string"}
            }
        },
        "GenerationResult": {
            "type": "object",
            "properties": {
                "run_id": {"type": "string"},
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "reason": {"type": "string"},
                "entries_created": {"type": "integer"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "recommendations": {"type": "array", "items": {"type": "string"}}
            }
        },
        "ValidationResult": {
            "type": "object",
            "properties": {
                "is_valid": {"type": "boolean"},
                "errors": {"type": "array", "items": {"type": "string"}},
                "recommendations": {"type": "array", "items": {"type": "string"}}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
