package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"demo-backend/internal/common/config"
	commonhttp "demo-backend/internal/common/http"
	"demo-backend/internal/models"
)

// Payload is the JSON body sent to the external provisioning API.
type Payload struct {
	Organization models.OrganizationSnapshot `json:"organization"`
	User         models.UserSnapshot         `json:"user"`
}

// APIError is the typed failure of a provisioning call. StatusCode is 0
// when no HTTP response was received (timeout, connection error).
type APIError struct {
	StatusCode int
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("provisioning API returned status %d: %s", e.StatusCode, string(e.Body))
	}
	return fmt.Sprintf("provisioning API call failed: %v", e.Err)
}

// StatusLabel returns the decimal status code, or "unknown" when the call
// never produced a response.
func (e *APIError) StatusLabel() string {
	if e.StatusCode > 0 {
		return strconv.Itoa(e.StatusCode)
	}
	return "unknown"
}

// Details returns the error body as JSON when possible, otherwise the
// error message as a JSON string.
func (e *APIError) Details() json.RawMessage {
	if len(e.Body) > 0 && json.Valid(e.Body) {
		return json.RawMessage(e.Body)
	}
	msg, _ := json.Marshal(e.Error())
	return json.RawMessage(msg)
}

// Client is the synchronous call-and-wait adapter to the external
// provisioning endpoint. One attempt per request, no retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *commonhttp.Client
}

func NewClient(cfg config.ProvisioningConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: commonhttp.NewClient(timeout),
	}
}

// CreateDemo posts the payload and returns the success body and status
// code, or an *APIError for any non-2xx response, timeout or network
// failure.
func (c *Client) CreateDemo(ctx context.Context, payload *Payload) (json.RawMessage, int, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, &APIError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, &APIError{Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, resp.StatusCode, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	return json.RawMessage(body), resp.StatusCode, nil
}
