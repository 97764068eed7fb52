package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Course Scheduler API",
        "description": "Schedule conflict detection: room double-booking, block-section overlaps and duplicate offerings",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Schedules", "description": "Class schedules with conflict checks"},
        {"name": "Audit", "description": "Block-section audit sweeps"}
    ],
    "paths": {
        "/schedules": {
            "get": {
                "tags": ["Schedules"],
                "summary": "List schedules",
                "parameters": [
                    {"name": "academicYearId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string", "enum": ["1st", "2nd", "Summer"]},
                    {"name": "roomId", "in": "query", "type": "string"},
                    {"name": "subjectId", "in": "query", "type": "string"},
                    {"name": "section", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string", "enum": ["active", "inactive"]},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "sort", "in": "query", "type": "string", "enum": ["start_time", "section", "room_id", "created_at"]},
                    {"name": "order", "in": "query", "type": "string", "enum": ["asc", "desc"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Schedules"],
                "summary": "Create schedule",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload or meeting times", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Hard conflicts in error.details.conflicts", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Capacity warnings in error.details.warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/check": {
            "post": {
                "tags": ["Schedules"],
                "summary": "Dry-run schedule validation",
                "parameters": [
                    {"name": "scheduleId", "in": "query", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "Validation errors, conflicts and warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/{id}": {
            "get": {
                "tags": ["Schedules"],
                "summary": "Get schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Schedules"],
                "summary": "Update schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScheduleRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Unacknowledged warnings", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Schedules"],
                "summary": "Deactivate schedule",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deactivated"}
                }
            }
        },
        "/schedules/audit": {
            "get": {
                "tags": ["Audit"],
                "summary": "Run block-section audit",
                "parameters": [
                    {"name": "academicYearId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Block-section report", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Audit"],
                "summary": "Enqueue block-section audit with flag refresh",
                "parameters": [
                    {"name": "payload", "in": "body", "required": false, "schema": {"$ref": "#/definitions/AuditRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Worker disabled or busy", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/schedules/audit/export": {
            "get": {
                "tags": ["Audit"],
                "summary": "Download block-section audit as CSV or PDF",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]},
                    {"name": "academicYearId", "in": "query", "type": "string"},
                    {"name": "semester", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Report file", "schema": {"type": "file"}}
                }
            }
        },
        "/schedules/audit/jobs/{id}": {
            "get": {
                "tags": ["Audit"],
                "summary": "Audit job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ScheduleRequest": {
            "type": "object",
            "required": ["subject_id", "room_id", "academic_year_id", "semester", "section", "day_pattern", "start_time", "end_time"],
            "properties": {
                "subject_id": {"type": "string"},
                "curriculum_subject_id": {"type": "string"},
                "room_id": {"type": "string"},
                "faculty_id": {"type": "string"},
                "academic_year_id": {"type": "string"},
                "semester": {"type": "string", "enum": ["1st", "2nd", "Summer"]},
                "section": {"type": "string"},
                "day_pattern": {"type": "string", "enum": ["M-W-F", "T-TH", "M-T-TH-F", "M-T", "TH-F", "SAT", "SUN"]},
                "start_time": {"type": "string", "example": "07:30"},
                "end_time": {"type": "string", "example": "09:00"},
                "enrolled_students": {"type": "integer"},
                "is_overload": {"type": "boolean"},
                "acknowledge_warnings": {"type": "boolean"}
            }
        },
        "AuditRequest": {
            "type": "object",
            "properties": {
                "academic_year_id": {"type": "string"},
                "semester": {"type": "string"}
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
                "status": {"type": "integer"},
                "details": {"type": "object"}
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
