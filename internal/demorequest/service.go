package demorequest

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"

	"demo-backend/internal/common/errors"
	"demo-backend/internal/common/logger"
	"demo-backend/internal/common/metrics"
	"demo-backend/internal/common/observability"
	"demo-backend/internal/models"
	"demo-backend/internal/provisioning"

	stderrors "errors"
)

// Service orchestrates the demo-request lifecycle: creation, the single
// external provisioning call, and the terminal outcome record. Each request
// moves processing -> completed | failed exactly once; the reconciler picks
// up rows a double fault left behind.
type Service struct {
	config      *Config
	store       Store
	provisioner ProvisioningAPI
	logger      logger.Logger
	obs         *observability.Observability
	audit       AuditIndexer
	notifier    Notifier
}

func NewService(deps ServiceDependencies, cfg *Config) *Service {
	log := deps.Logger
	if log == nil {
		log = logger.NewStructured("info", "json")
	}
	return &Service{
		config:      cfg,
		store:       deps.Store,
		provisioner: deps.Provisioner,
		logger:      log,
		obs:         deps.Obs,
		audit:       deps.Audit,
		notifier:    deps.Notifier,
	}
}

// Create records a demo request, forwards it to the provisioning API and
// persists the outcome.
//
// The creation insert commits in its own transaction before the external
// call, so the audit trail of "a request was made" survives every later
// fault and no connection is held while waiting on the external API. A nil
// error with Status failed means the external call failed but the request
// row is durable and discoverable; a non-nil error means a local fault
// where either no row exists or the row awaits the reconciler.
func (s *Service) Create(ctx context.Context, userID string, input *CreateInput) (*CreateResult, error) {
	startTime := time.Now()
	metrics.DemoRequestsInFlight.Inc()
	defer metrics.DemoRequestsInFlight.Dec()

	if s.obs != nil {
		var span trace.Span
		ctx, span = s.obs.StartSpan(ctx, "demorequest.create")
		defer span.End()
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	req, err := s.store.Create(ctx, userID, input.Organization, input.User)
	if err != nil {
		s.logger.Error("demo request insert failed", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		s.observeOutcome(ctx, "error", startTime)
		if stderrors.Is(err, ErrConstraintViolation) {
			return nil, errors.NewUserNotFoundError(userID)
		}
		return nil, errors.NewDatabaseInsertFailedError(err)
	}

	log := s.logger.WithFields(map[string]interface{}{
		"requestId": req.ID,
		"userId":    userID,
	})
	log.Info("demo request created, calling provisioning API", nil)

	callStart := time.Now()
	credentials, statusCode, callErr := s.provisioner.CreateDemo(ctx, &provisioning.Payload{
		Organization: input.Organization,
		User:         input.User,
	})

	if callErr != nil {
		metrics.ProvisioningCallDuration.WithLabelValues("failure").Observe(time.Since(callStart).Seconds())
		return s.recordFailure(ctx, log, req, callErr, startTime)
	}
	metrics.ProvisioningCallDuration.WithLabelValues("success").Observe(time.Since(callStart).Seconds())

	outcome := Outcome{
		Status:      models.StatusCompleted,
		Credentials: credentials,
		ExternalResponse: models.ExternalResponse{
			Status:    strconv.Itoa(statusCode),
			Data:      credentials,
			Timestamp: time.Now().UTC(),
		},
	}

	if err := s.store.RecordOutcome(ctx, req.ID, outcome); err != nil {
		// The row stays processing until the reconciler sweeps it.
		log.Error("outcome update failed after successful provisioning", map[string]interface{}{
			"error": err.Error(),
		})
		s.observeOutcome(ctx, "error", startTime)
		return nil, errors.NewDatabaseUpdateFailedError(err)
	}

	req.Status = models.StatusCompleted
	req.Credentials = credentials
	req.ExternalResponse = &outcome.ExternalResponse
	req.UpdatedAt = outcome.ExternalResponse.Timestamp

	log.Info("demo request completed", map[string]interface{}{
		"externalStatus": statusCode,
	})
	s.observeOutcome(ctx, string(models.StatusCompleted), startTime)
	s.recordAudit(req)
	s.notifyCompleted(req)

	return &CreateResult{
		ID:          req.ID,
		Status:      models.StatusCompleted,
		Credentials: credentials,
	}, nil
}

// recordFailure handles the external-failure branch: the attempt is kept as
// a queryable failed record and the caller still receives the id.
func (s *Service) recordFailure(ctx context.Context, log logger.Logger, req *models.DemoRequest, callErr error, startTime time.Time) (*CreateResult, error) {
	statusLabel := "unknown"
	details := provisioningDetails(callErr)

	var apiErr *provisioning.APIError
	if stderrors.As(callErr, &apiErr) {
		statusLabel = apiErr.StatusLabel()
	}

	external := models.ExternalResponse{
		Status:    statusLabel,
		Error:     callErr.Error(),
		Timestamp: time.Now().UTC(),
	}

	log.Warn("provisioning call failed", map[string]interface{}{
		"externalStatus": statusLabel,
		"error":          callErr.Error(),
	})

	outcome := Outcome{
		Status:           models.StatusFailed,
		ExternalResponse: external,
	}
	if err := s.store.RecordOutcome(ctx, req.ID, outcome); err != nil {
		// Double fault: the row stays processing until the reconciler
		// sweeps it. The id is still returned so the record is
		// discoverable.
		log.Error("failed to record provisioning failure", map[string]interface{}{
			"error": err.Error(),
		})
	}

	req.Status = models.StatusFailed
	req.ExternalResponse = &external
	s.observeOutcome(ctx, string(models.StatusFailed), startTime)
	s.recordAudit(req)

	return &CreateResult{
		ID:      req.ID,
		Status:  models.StatusFailed,
		Details: details,
	}, nil
}

// List returns the caller's requests newest-first, summary projection.
func (s *Service) List(ctx context.Context, userID string) ([]models.DemoRequestSummary, error) {
	summaries, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list demo requests", map[string]interface{}{
			"userId": userID,
			"error":  err.Error(),
		})
		return nil, errors.NewQueryExecutionFailedError(err)
	}
	return summaries, nil
}

// Get returns the caller's request by id, or a not-found error that does
// not distinguish non-owned ids from nonexistent ones.
func (s *Service) Get(ctx context.Context, id, userID string) (*models.DemoRequest, error) {
	req, err := s.store.GetByIDForUser(ctx, id, userID)
	if err != nil {
		if stderrors.Is(err, ErrNotFound) {
			return nil, errors.NewDemoRequestNotFoundError(id)
		}
		s.logger.Error("failed to get demo request", map[string]interface{}{
			"requestId": id,
			"userId":    userID,
			"error":     err.Error(),
		})
		return nil, errors.NewQueryExecutionFailedError(err)
	}
	return req, nil
}

func (s *Service) observeOutcome(ctx context.Context, outcome string, startTime time.Time) {
	elapsed := time.Since(startTime)
	metrics.DemoRequestsTotal.WithLabelValues(outcome).Inc()
	metrics.DemoRequestDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if s.obs != nil {
		s.obs.RecordRequestProcessed(ctx, outcome)
		s.obs.RecordRequestDuration(ctx, elapsed, outcome)
	}
}

// recordAudit indexes the terminal transition, best-effort.
func (s *Service) recordAudit(req *models.DemoRequest) {
	if s.audit == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.audit.IndexOutcome(ctx, req); err != nil {
		s.logger.Warn("failed to index audit record", map[string]interface{}{
			"requestId": req.ID,
			"error":     err.Error(),
		})
	}
}

// notifyCompleted sends the credentials email, best-effort.
func (s *Service) notifyCompleted(req *models.DemoRequest) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.notifier.NotifyCompleted(ctx, req); err != nil {
		s.logger.Warn("failed to send credentials notification", map[string]interface{}{
			"requestId": req.ID,
			"error":     err.Error(),
		})
	}
}

func provisioningDetails(callErr error) []byte {
	var apiErr *provisioning.APIError
	if stderrors.As(callErr, &apiErr) {
		return apiErr.Details()
	}
	msg, _ := json.Marshal(callErr.Error())
	return msg
}
