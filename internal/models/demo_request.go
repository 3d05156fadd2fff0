// internal/models/demo_request.go
package models

import (
	"encoding/json"
	"time"
)

// DemoRequestStatus is the lifecycle state of a demo request.
type DemoRequestStatus string

const (
	// StatusPending exists in the schema for a future queued-creation path;
	// the current create flow inserts rows directly as processing.
	StatusPending DemoRequestStatus = "pending"

	StatusProcessing DemoRequestStatus = "processing"
	StatusCompleted  DemoRequestStatus = "completed"
	StatusFailed     DemoRequestStatus = "failed"
)

// IsTerminal reports whether no further transition may occur.
func (s DemoRequestStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// OrganizationSnapshot is the write-once copy of organization fields
// supplied at creation.
type OrganizationSnapshot struct {
	Name         string `json:"name,omitempty"`
	BusinessName string `json:"business_name,omitempty"`
	Email        string `json:"email,omitempty"`
	Phone        string `json:"phone,omitempty"`
	AddressLine  string `json:"address_line,omitempty"`
	City         string `json:"city,omitempty"`
	State        string `json:"state,omitempty"`
	PinCode      string `json:"pin_code,omitempty"`
}

// UserSnapshot is the write-once copy of submitter contact fields.
type UserSnapshot struct {
	Email      string `json:"email,omitempty"`
	FullName   string `json:"full_name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	JobTitle   string `json:"job_title,omitempty"`
	Department string `json:"department,omitempty"`
}

// ExternalResponse records the outcome of the single provisioning call.
// Status holds the decimal HTTP status code, or "unknown" when the call
// never produced a response (timeout, network error).
type ExternalResponse struct {
	Status    string          `json:"status"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// DemoRequest is the durable record of one user's provisioning request.
// Credentials is non-null only when Status is completed; ExternalResponse
// is null only before the external call has resolved.
type DemoRequest struct {
	ID               string               `json:"id"`
	UserID           string               `json:"user_id"`
	Organization     OrganizationSnapshot `json:"organization"`
	User             UserSnapshot         `json:"user"`
	Credentials      json.RawMessage      `json:"demo_credentials,omitempty"`
	ExternalResponse *ExternalResponse    `json:"external_api_response,omitempty"`
	Status           DemoRequestStatus    `json:"status"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// DemoRequestSummary is the list projection: no snapshot detail beyond the
// organization headline fields, credentials included.
type DemoRequestSummary struct {
	ID               string            `json:"id"`
	OrganizationName string            `json:"organization_name,omitempty"`
	BusinessName     string            `json:"business_name,omitempty"`
	Credentials      json.RawMessage   `json:"demo_credentials"`
	Status           DemoRequestStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
