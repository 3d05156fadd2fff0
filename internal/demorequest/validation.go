package demorequest

import (
	"encoding/json"
	"fmt"

	"demo-backend/internal/common/errors"
	"demo-backend/internal/common/validation"
)

// demoRequestSchema constrains the creation payload. Both objects and every
// field inside them are optional; the provisioning API fills in defaults for
// anything missing.
const demoRequestSchema = `{
	"type": "object",
	"properties": {
		"organization": {
			"type": "object",
			"properties": {
				"name": {"type": "string", "maxLength": 255},
				"business_name": {"type": "string"},
				"email": {"type": "string", "format": "email"},
				"phone": {"type": "string", "pattern": "^\\+?[\\d\\s\\-\\(\\)]+$"},
				"address_line": {"type": "string"},
				"city": {"type": "string"},
				"state": {"type": "string"},
				"pin_code": {"type": "string"}
			}
		},
		"user": {
			"type": "object",
			"properties": {
				"email": {"type": "string", "format": "email"},
				"full_name": {"type": "string", "maxLength": 255},
				"phone": {"type": "string", "pattern": "^\\+?[\\d\\s\\-\\(\\)]+$"},
				"job_title": {"type": "string"},
				"department": {"type": "string"}
			}
		}
	}
}`

// ParseCreateInput validates the raw request body against the schema and
// decodes it. The returned error is a StandardError suitable for the HTTP
// layer.
func ParseCreateInput(body []byte) (*CreateInput, *errors.StandardError) {
	if len(body) == 0 {
		body = []byte("{}")
	}

	result, err := validation.ValidateBytes(body, demoRequestSchema)
	if err != nil {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("invalid JSON payload: %v", err))
	}
	if !result.Valid {
		return nil, errors.NewValidationFailedError(result.First())
	}

	var input CreateInput
	if err := json.Unmarshal(body, &input); err != nil {
		return nil, errors.NewValidationFailedError(fmt.Sprintf("invalid JSON payload: %v", err))
	}

	return &input, nil
}
