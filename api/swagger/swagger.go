package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Engage Sync API",
        "description": "Engagement tag reconciliation between enrollments and the CRM tag directory",
        "version": "0.1.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {"name": "Authentication", "description": "Operator login"},
        {"name": "Enrollments", "description": "Dry-run evaluation"},
        {"name": "Reconciliation", "description": "Single-enrollment tag sync"},
        {"name": "Runs", "description": "Batch reconciliation runs"},
        {"name": "Rules", "description": "Tagging rule catalog"},
        {"name": "System", "description": "Observability"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/enrollments/preview": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Preview an enrollment's evaluation",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "learnerId", "in": "query", "required": true, "type": "string"},
                    {"name": "offeringId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/reconcile": {
            "post": {
                "tags": ["Reconciliation"],
                "summary": "Reconcile one enrollment",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReconcileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Enrollment not found"}
                }
            }
        },
        "/runs": {
            "post": {
                "tags": ["Runs"],
                "summary": "Start a reconciliation run",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/StartRunRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Runs"],
                "summary": "List reconciliation runs",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/runs/{id}": {
            "get": {
                "tags": ["Runs"],
                "summary": "Fetch a run summary",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/runs/{id}/outcomes": {
            "get": {
                "tags": ["Runs"],
                "summary": "List a run's per-enrollment outcomes",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/runs/{id}/export": {
            "get": {
                "tags": ["Runs"],
                "summary": "Export a run report",
                "security": [{"BearerAuth": []}],
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"], "default": "csv"}
                ],
                "responses": {
                    "200": {"description": "Rendered report"},
                    "400": {"description": "Unsupported format"},
                    "404": {"description": "Run not found"}
                }
            }
        },
        "/runs/export/download": {
            "get": {
                "tags": ["Runs"],
                "summary": "Download an archived run report",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Archived report"},
                    "401": {"description": "Invalid or expired token"},
                    "404": {"description": "Report no longer archived"}
                }
            }
        },
        "/rules": {
            "get": {
                "tags": ["Rules"],
                "summary": "List tagging rules",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "active", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/system/metrics": {
            "get": {
                "tags": ["System"],
                "summary": "Aggregate system metrics",
                "security": [{"BearerAuth": []}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "ReconcileRequest": {
            "type": "object",
            "required": ["learnerId", "offeringId"],
            "properties": {
                "learnerId": {"type": "string"},
                "offeringId": {"type": "string"}
            }
        },
        "StartRunRequest": {
            "type": "object",
            "properties": {
                "offeringId": {"type": "string"},
                "status": {"type": "string"},
                "updatedSince": {"type": "string", "format": "date-time"}
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
