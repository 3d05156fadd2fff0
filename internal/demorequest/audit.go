package demorequest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"demo-backend/internal/common/database"
	"demo-backend/internal/models"
)

const defaultAuditIndex = "demo-request-audit"

// ElasticsearchAuditIndexer writes one audit document per terminal
// transition. Credentials are deliberately left out of the document.
type ElasticsearchAuditIndexer struct {
	client *database.ElasticsearchClient
	index  string
}

func NewElasticsearchAuditIndexer(client *database.ElasticsearchClient, index string) *ElasticsearchAuditIndexer {
	if index == "" {
		index = defaultAuditIndex
	}
	return &ElasticsearchAuditIndexer{client: client, index: index}
}

type auditDocument struct {
	RequestID        string                   `json:"request_id"`
	UserID           string                   `json:"user_id"`
	OrganizationName string                   `json:"organization_name,omitempty"`
	Status           models.DemoRequestStatus `json:"status"`
	ExternalStatus   string                   `json:"external_status,omitempty"`
	ExternalError    string                   `json:"external_error,omitempty"`
	RecordedAt       time.Time                `json:"recorded_at"`
}

func (a *ElasticsearchAuditIndexer) IndexOutcome(ctx context.Context, req *models.DemoRequest) error {
	doc := auditDocument{
		RequestID:        req.ID,
		UserID:           req.UserID,
		OrganizationName: req.Organization.Name,
		Status:           req.Status,
		RecordedAt:       time.Now().UTC(),
	}
	if req.ExternalResponse != nil {
		doc.ExternalStatus = req.ExternalResponse.Status
		doc.ExternalError = req.ExternalResponse.Error
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal audit document: %w", err)
	}

	return a.client.Index(ctx, a.index, req.ID, body)
}
