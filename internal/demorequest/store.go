package demorequest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"demo-backend/internal/models"
)

var (
	// ErrNotFound covers both unknown ids and ids owned by another user.
	ErrNotFound = errors.New("demo request not found")

	// ErrConstraintViolation is returned when the user foreign key does not
	// reference an existing user.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrAlreadyTerminal is returned when a terminal outcome was recorded
	// before this write. Terminal statuses are never overwritten.
	ErrAlreadyTerminal = errors.New("demo request already resolved")
)

// foreignKeyViolation is the class 23 code raised by postgres when the
// user_id reference is invalid.
const foreignKeyViolation = "23503"

// Store is the persistence contract the workflow requires.
type Store interface {
	Create(ctx context.Context, userID string, org models.OrganizationSnapshot, usr models.UserSnapshot) (*models.DemoRequest, error)
	RecordOutcome(ctx context.Context, id string, outcome Outcome) error
	ListByUser(ctx context.Context, userID string) ([]models.DemoRequestSummary, error)
	GetByIDForUser(ctx context.Context, id, userID string) (*models.DemoRequest, error)
	MarkStaleFailed(ctx context.Context, olderThan time.Duration) (int64, error)
}

// Outcome carries the terminal fields recorded once the external call has
// resolved. Credentials is nil unless Status is completed.
type Outcome struct {
	Status           models.DemoRequestStatus
	Credentials      json.RawMessage
	ExternalResponse models.ExternalResponse
}

// SQLStore implements Store on PostgreSQL.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const insertDemoRequestQuery = `
	INSERT INTO demo_requests (
		id, user_id, organization_name, business_name, organization_email,
		organization_phone, address_line, city, state, pin_code,
		user_email, user_full_name, user_phone, job_title, department,
		status, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

// Create inserts a new demo request with status processing inside its own
// transaction and returns the stored row. The commit here is the durable
// audit trail of "a request was made"; later faults never roll it back.
func (s *SQLStore) Create(ctx context.Context, userID string, org models.OrganizationSnapshot, usr models.UserSnapshot) (*models.DemoRequest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create transaction: %w", err)
	}

	now := time.Now().UTC()
	req := &models.DemoRequest{
		ID:           uuid.NewString(),
		UserID:       userID,
		Organization: org,
		User:         usr,
		Status:       models.StatusProcessing,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	_, err = tx.ExecContext(ctx, insertDemoRequestQuery,
		req.ID, req.UserID,
		nullString(org.Name), nullString(org.BusinessName), nullString(org.Email),
		nullString(org.Phone), nullString(org.AddressLine), nullString(org.City),
		nullString(org.State), nullString(org.PinCode),
		nullString(usr.Email), nullString(usr.FullName), nullString(usr.Phone),
		nullString(usr.JobTitle), nullString(usr.Department),
		string(req.Status), req.CreatedAt, req.UpdatedAt,
	)
	if err != nil {
		tx.Rollback()
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return nil, fmt.Errorf("insert demo request: %w", ErrConstraintViolation)
		}
		return nil, fmt.Errorf("insert demo request: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create transaction: %w", err)
	}

	return req, nil
}

const updateOutcomeQuery = `
	UPDATE demo_requests
	SET demo_credentials = $1, external_api_response = $2, status = $3, updated_at = $4
	WHERE id = $5 AND status = $6`

const selectStatusQuery = `SELECT status FROM demo_requests WHERE id = $1`

// RecordOutcome sets the terminal fields for a request in its own
// transaction. The predicate only matches processing rows, so the first
// terminal write wins and a later one returns ErrAlreadyTerminal; an
// unknown id returns ErrNotFound.
func (s *SQLStore) RecordOutcome(ctx context.Context, id string, outcome Outcome) error {
	externalJSON, err := json.Marshal(outcome.ExternalResponse)
	if err != nil {
		return fmt.Errorf("marshal external response: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin outcome transaction: %w", err)
	}

	var credentials interface{}
	if len(outcome.Credentials) > 0 {
		credentials = []byte(outcome.Credentials)
	}

	result, err := tx.ExecContext(ctx, updateOutcomeQuery,
		credentials, externalJSON, string(outcome.Status), time.Now().UTC(), id,
		string(models.StatusProcessing),
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update demo request outcome: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("update demo request outcome: %w", err)
	}
	if affected == 0 {
		var current string
		scanErr := tx.QueryRowContext(ctx, selectStatusQuery, id).Scan(&current)
		tx.Rollback()
		if errors.Is(scanErr, sql.ErrNoRows) {
			return ErrNotFound
		}
		if scanErr != nil {
			return fmt.Errorf("check demo request status: %w", scanErr)
		}
		return ErrAlreadyTerminal
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit outcome transaction: %w", err)
	}

	return nil
}

const listByUserQuery = `
	SELECT id, organization_name, business_name, demo_credentials, status, created_at, updated_at
	FROM demo_requests
	WHERE user_id = $1
	ORDER BY created_at DESC`

// ListByUser returns the summary projection newest-first.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]models.DemoRequestSummary, error) {
	rows, err := s.db.QueryContext(ctx, listByUserQuery, userID)
	if err != nil {
		return nil, fmt.Errorf("list demo requests: %w", err)
	}
	defer rows.Close()

	summaries := []models.DemoRequestSummary{}
	for rows.Next() {
		var (
			summary      models.DemoRequestSummary
			orgName      sql.NullString
			businessName sql.NullString
			credentials  []byte
			status       string
		)
		if err := rows.Scan(&summary.ID, &orgName, &businessName, &credentials,
			&status, &summary.CreatedAt, &summary.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan demo request summary: %w", err)
		}
		summary.OrganizationName = orgName.String
		summary.BusinessName = businessName.String
		if len(credentials) > 0 {
			summary.Credentials = json.RawMessage(credentials)
		}
		summary.Status = models.DemoRequestStatus(status)
		summaries = append(summaries, summary)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate demo requests: %w", err)
	}

	return summaries, nil
}

const getByIDForUserQuery = `
	SELECT id, user_id, organization_name, business_name, organization_email,
		organization_phone, address_line, city, state, pin_code,
		user_email, user_full_name, user_phone, job_title, department,
		demo_credentials, external_api_response, status, created_at, updated_at
	FROM demo_requests
	WHERE id = $1 AND user_id = $2`

// GetByIDForUser returns the full projection. Ownership is enforced by the
// query predicate itself so a non-owned id is indistinguishable from a
// nonexistent one.
func (s *SQLStore) GetByIDForUser(ctx context.Context, id, userID string) (*models.DemoRequest, error) {
	var (
		req          models.DemoRequest
		org          [8]sql.NullString
		usr          [5]sql.NullString
		credentials  []byte
		externalJSON []byte
		status       string
	)

	err := s.db.QueryRowContext(ctx, getByIDForUserQuery, id, userID).Scan(
		&req.ID, &req.UserID,
		&org[0], &org[1], &org[2], &org[3], &org[4], &org[5], &org[6], &org[7],
		&usr[0], &usr[1], &usr[2], &usr[3], &usr[4],
		&credentials, &externalJSON, &status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get demo request: %w", err)
	}

	req.Organization = models.OrganizationSnapshot{
		Name: org[0].String, BusinessName: org[1].String, Email: org[2].String,
		Phone: org[3].String, AddressLine: org[4].String, City: org[5].String,
		State: org[6].String, PinCode: org[7].String,
	}
	req.User = models.UserSnapshot{
		Email: usr[0].String, FullName: usr[1].String, Phone: usr[2].String,
		JobTitle: usr[3].String, Department: usr[4].String,
	}
	if len(credentials) > 0 {
		req.Credentials = json.RawMessage(credentials)
	}
	if len(externalJSON) > 0 {
		var external models.ExternalResponse
		if err := json.Unmarshal(externalJSON, &external); err != nil {
			return nil, fmt.Errorf("decode external response: %w", err)
		}
		req.ExternalResponse = &external
	}
	req.Status = models.DemoRequestStatus(status)

	return &req, nil
}

const markStaleFailedQuery = `
	UPDATE demo_requests
	SET status = $1, external_api_response = $2, updated_at = $3
	WHERE status = $4 AND updated_at < $5`

// MarkStaleFailed marks processing rows older than the threshold as failed
// with a synthesized external response. Closes the double-fault gap where a
// crash or failed outcome update left a row stuck in processing.
func (s *SQLStore) MarkStaleFailed(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	external := models.ExternalResponse{
		Status:    "unknown",
		Error:     "request stuck in processing beyond staleness threshold",
		Timestamp: now,
	}
	externalJSON, err := json.Marshal(external)
	if err != nil {
		return 0, fmt.Errorf("marshal stale response: %w", err)
	}

	result, err := s.db.ExecContext(ctx, markStaleFailedQuery,
		string(models.StatusFailed), externalJSON, now,
		string(models.StatusProcessing), now.Add(-olderThan),
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale requests failed: %w", err)
	}

	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
