package demorequest

import (
	"context"
	"encoding/json"

	"demo-backend/internal/common/logger"
	"demo-backend/internal/common/observability"
	"demo-backend/internal/models"
	"demo-backend/internal/provisioning"
)

// CreateInput carries the validated creation payload.
type CreateInput struct {
	Organization models.OrganizationSnapshot `json:"organization"`
	User         models.UserSnapshot         `json:"user"`
}

// CreateResult is the outcome of one create operation. Details is only set
// on the failed branch and carries the external API's error body.
type CreateResult struct {
	ID          string                   `json:"demo_request_id"`
	Status      models.DemoRequestStatus `json:"status"`
	Credentials json.RawMessage          `json:"credentials,omitempty"`
	Details     json.RawMessage          `json:"details,omitempty"`
}

// ProvisioningAPI is the external provisioning call the workflow depends on.
type ProvisioningAPI interface {
	CreateDemo(ctx context.Context, payload *provisioning.Payload) (json.RawMessage, int, error)
}

// AuditIndexer records terminal transitions in the audit sink. Best-effort;
// errors never affect the workflow outcome.
type AuditIndexer interface {
	IndexOutcome(ctx context.Context, req *models.DemoRequest) error
}

// Notifier delivers the credentials email after a completed request.
type Notifier interface {
	NotifyCompleted(ctx context.Context, req *models.DemoRequest) error
}

type ServiceDependencies struct {
	Store       Store
	Provisioner ProvisioningAPI
	Logger      logger.Logger
	Obs         *observability.Observability
	Audit       AuditIndexer
	Notifier    Notifier
}
