package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Sales Credit Unblock API",
        "description": "Two-level approval of sales-credit unblock requests reviewed in credit meetings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1/credit",
    "schemes": [
        "http"
    ],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "in": "header", "name": "Authorization"}
    },
    "security": [{"BearerAuth": []}],
    "tags": [
        {"name": "Meetings", "description": "Credit meetings and their approval status"},
        {"name": "Unblock Requests", "description": "Requests reviewed within a meeting"},
        {"name": "Approvals", "description": "Batch decisions and the approval audit trail"}
    ],
    "paths": {
        "/meetings": {
            "get": {
                "tags": ["Meetings"],
                "summary": "List meetings",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "enum": ["PLANNED", "PREPARING", "ON_GOING", "FINISHED"]},
                    {"name": "from", "in": "query", "type": "string", "format": "date"},
                    {"name": "to", "in": "query", "type": "string", "format": "date"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/meetings/{id}/stats": {
            "get": {
                "tags": ["Meetings"],
                "summary": "Meeting statistics and approval status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/MeetingStats"}},
                    "404": {"description": "Meeting not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/meetings/{id}/unblock-requests": {
            "get": {
                "tags": ["Unblock Requests"],
                "summary": "List active unblock requests of a meeting",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Meeting not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/meetings/{id}/batch-approval": {
            "post": {
                "tags": ["Approvals"],
                "summary": "Apply a batch decision at one approval level",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BatchApprovalRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision applied", "schema": {"$ref": "#/definitions/DecisionOutcome"}},
                    "400": {"description": "Invalid selection", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "403": {"description": "Role may not act at this level", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "404": {"description": "Meeting not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "409": {"description": "Transition not allowed", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "503": {"description": "Meeting is locked by another decision", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/meetings/{id}/approval-history": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Approval history of a meeting, newest first",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Meeting not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/meetings/{id}/approval-history/export": {
            "get": {
                "tags": ["Approvals"],
                "summary": "Download the approval history",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}
                ],
                "responses": {
                    "200": {"description": "File attachment"},
                    "400": {"description": "Unsupported format", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/unblock-requests/{id}/decision": {
            "post": {
                "tags": ["Unblock Requests"],
                "summary": "Decide a single unblock request at first level, or put it on hold",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "integer"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/DecisionRequest"}}
                ],
                "responses": {
                    "200": {"description": "Decision applied"},
                    "400": {"description": "Invalid decision", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "403": {"description": "Role may not act at this level", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "404": {"description": "Request not found", "schema": {"$ref": "#/definitions/ErrorEnvelope"}},
                    "409": {"description": "Transition not allowed, or the request awaits second-level approval", "schema": {"$ref": "#/definitions/ErrorEnvelope"}}
                }
            }
        },
        "/metrics/summary": {
            "get": {
                "tags": ["Meetings"],
                "summary": "Aggregated service metrics",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        }
    },
    "definitions": {
        "BatchApprovalRequest": {
            "type": "object",
            "required": ["approverLevel"],
            "properties": {
                "approveRequestIds": {"type": "array", "items": {"type": "integer"}},
                "rejectRequestIds": {"type": "array", "items": {"type": "integer"}},
                "approverLevel": {"type": "string", "enum": ["1st", "2nd"]},
                "approverId": {"type": "string", "maxLength": 32},
                "comment": {"type": "string", "maxLength": 1000}
            }
        },
        "DecisionRequest": {
            "type": "object",
            "required": ["decision"],
            "properties": {
                "decision": {"type": "string", "enum": ["APPROVE", "REJECT", "HOLD"]},
                "approverId": {"type": "string", "maxLength": 32},
                "comment": {"type": "string", "maxLength": 1000}
            }
        },
        "Warning": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "DecisionOutcome": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "approvalId": {"type": "integer"},
                "histId": {"type": "integer"},
                "approverRole": {"type": "string", "enum": ["NONE", "SALES_MANAGER", "CEO"]},
                "decisionResult": {"type": "string", "enum": ["SUBMITTED", "APPROVED_1ST", "APPROVED_FINAL", "REJECTED"]},
                "approvedCount": {"type": "integer"},
                "rejectedCount": {"type": "integer"},
                "approverId": {"type": "string"},
                "approverName": {"type": "string"},
                "message": {"type": "string"},
                "warnings": {"type": "array", "items": {"$ref": "#/definitions/Warning"}}
            }
        },
        "ApprovalStatus": {
            "type": "object",
            "properties": {
                "approvalId": {"type": "integer"},
                "currentRole": {"type": "string"},
                "currentResult": {"type": "string"},
                "state": {"type": "string"},
                "finalized": {"type": "boolean"},
                "firstLevelEnabled": {"type": "boolean"},
                "secondLevelEnabled": {"type": "boolean"},
                "transitions": {"type": "array", "items": {"type": "object"}}
            }
        },
        "MeetingStats": {
            "type": "object",
            "properties": {
                "meetingId": {"type": "integer"},
                "meetingStatus": {"type": "string"},
                "totalCount": {"type": "integer"},
                "totalAmount": {"type": "number"},
                "statusBreakdown": {"type": "array", "items": {"type": "object"}},
                "topRequesters": {"type": "array", "items": {"type": "object"}},
                "approvalStatus": {"$ref": "#/definitions/ApprovalStatus"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"}
            }
        },
        "ErrorEnvelope": {
            "type": "object",
            "properties": {
                "success": {"type": "boolean"},
                "message": {"type": "string"},
                "error": {"$ref": "#/definitions/APIError"}
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
