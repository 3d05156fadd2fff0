package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"demo-backend/internal/common/errors"
	"demo-backend/internal/common/logger"
	"demo-backend/internal/demorequest"
	"demo-backend/internal/models"
)

// Handler carries the demo-request endpoints.
type Handler struct {
	service *demorequest.Service
	logger  logger.Logger
}

func NewHandler(service *demorequest.Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// CreateDemoRequest handles POST /api/demo/request.
//
// Three outcomes: 201 with credentials when provisioning succeeded, 500
// with the request id and external detail when the external call failed
// (the record is durable and queryable), and 500 without an id on a local
// fault before the record could be established.
func (h *Handler) CreateDemoRequest(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	input, stdErr := demorequest.ParseCreateInput(body)
	if stdErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": stdErr.Details})
		return
	}

	result, err := h.service.Create(c.Request.Context(), identity.UserID, input)
	if err != nil {
		stdErr := errors.Normalize(err)
		c.JSON(errors.HTTPStatus(stdErr.Code), gin.H{"error": errors.PublicMessage(stdErr)})
		return
	}

	if result.Status == models.StatusFailed {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":           "Failed to create demo credentials",
			"demo_request_id": result.ID,
			"status":          result.Status,
			"details":         result.Details,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":         "Demo request created successfully",
		"demo_request_id": result.ID,
		"credentials":     result.Credentials,
		"status":          result.Status,
	})
}

// ListDemoRequests handles GET /api/demo/requests. Returns the caller's
// requests newest-first in the summary projection.
func (h *Handler) ListDemoRequests(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	requests, err := h.service.List(c.Request.Context(), identity.UserID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch demo requests"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// GetDemoRequest handles GET /api/demo/requests/:id. A non-owned id yields
// the same 404 as a nonexistent one.
func (h *Handler) GetDemoRequest(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Access token required"})
		return
	}

	req, err := h.service.Get(c.Request.Context(), c.Param("id"), identity.UserID)
	if err != nil {
		stdErr := errors.Normalize(err)
		if stdErr.Code == errors.ErrCodeDemoRequestNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Demo request not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch demo request"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": req})
}
