package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"riskscan/internal/artifact"
	"riskscan/internal/models"
)

// Client is a client for the risk analysis API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("risk service returned status %d: %s", e.Code, e.Message)
}

// HealthResponse represents health check response
type HealthResponse struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

type reloadResponse struct {
	Status string         `json:"status"`
	Model  *artifact.Info `json:"model"`
}

// NewClient creates a new risk service client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Analyze submits a question set for scoring
func (c *Client) Analyze(ctx context.Context, req *models.AnalyzeRequest) (*models.AnalyzeResponse, error) {
	var result models.AnalyzeResponse
	if err := c.do(ctx, http.MethodPost, "/api/analyze", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Health checks service liveness
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var result HealthResponse
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Reload asks the service to re-read its model artifact
func (c *Client) Reload(ctx context.Context) (*artifact.Info, error) {
	var result reloadResponse
	if err := c.do(ctx, http.MethodPost, "/api/model/reload", nil, &result); err != nil {
		return nil, err
	}
	return result.Model, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var errResp models.ErrorResponse
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &errResp) == nil && errResp.Error != "" {
			msg = errResp.Error
		}
		return &StatusError{Code: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
