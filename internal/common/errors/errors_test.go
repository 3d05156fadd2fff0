// internal/common/errors/errors_test.go
package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus_KnownCodes(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeValidationFailed))
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(ErrCodeAuthenticationError))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrCodeDemoRequestNotFound))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(ErrCodeUserNotFound))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeDatabaseInsertFailed))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrCodeQueryExecutionFailed))
}

func TestHTTPStatus_UnknownCode(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(ErrorCode("SOMETHING_ELSE")))
}

func TestPublicMessage_CollapsesStoreFaults(t *testing.T) {
	for _, err := range []*StandardError{
		NewDatabaseInsertFailedError(stderrors.New("duplicate key")),
		NewDatabaseUpdateFailedError(stderrors.New("deadlock detected")),
		NewQueryExecutionFailedError(stderrors.New("syntax error")),
	} {
		msg := PublicMessage(err)
		assert.Equal(t, "Failed to process demo request", msg)
		assert.NotContains(t, msg, err.Details)
	}
}

func TestPublicMessage_PassesThroughOtherCodes(t *testing.T) {
	assert.Equal(t, "Input validation failed", PublicMessage(NewValidationFailedError("bad email")))
	assert.Equal(t, "Demo request not found", PublicMessage(NewDemoRequestNotFoundError("req-001")))
}

func TestNormalize_PassesThroughStandardError(t *testing.T) {
	original := NewValidationFailedError("bad email")
	assert.Same(t, original, Normalize(original))
}

func TestNormalize_WrapsPlainError(t *testing.T) {
	normalized := Normalize(stderrors.New("something odd"))

	assert.Equal(t, ErrorCode("INTERNAL_ERROR"), normalized.Code)
	assert.Equal(t, "something odd", normalized.Details)
	assert.False(t, normalized.Retryable)
}

func TestStandardError_ErrorString(t *testing.T) {
	err := NewValidationFailedError("bad email")
	assert.Contains(t, err.Error(), "VALIDATION_FAILED")
	assert.Contains(t, err.Error(), "Input validation failed")
}
