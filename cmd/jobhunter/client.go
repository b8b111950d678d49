package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/jobhunter/internal/config"
)

// apiClient talks to a running jobhunter server.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return &apiClient{
		baseURL: fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:   cfg.Server.APIToken,
		// Chat turns wait on the model and the search API.
		httpClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// apiError is a non-2xx reply. Message comes from either error shape the
// server writes: {"error":{"message":...}} or {"error":"...","details":...}.
type apiError struct {
	Status  int
	Message string
	Details string
}

func (e *apiError) Error() string {
	msg := fmt.Sprintf("server returned %d", e.Status)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Details != "" {
		msg += " (" + e.Details + ")"
	}
	return msg
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is jobhunter running? (%w)", err)
	}
	return resp, nil
}

// call sends in as the JSON body (nil for none) and decodes the reply into
// out.
func (c *apiClient) call(ctx context.Context, method, path string, in, out any) error {
	resp, err := c.do(ctx, method, path, in)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode < 400 {
		return json.NewDecoder(resp.Body).Decode(v)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("server returned %d (reading body: %w)", resp.StatusCode, err)
	}
	apiErr := &apiError{Status: resp.StatusCode}

	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Details string          `json:"details"`
	}
	if json.Unmarshal(raw, &envelope) != nil || len(envelope.Error) == 0 {
		apiErr.Message = string(bytes.TrimSpace(raw))
		return apiErr
	}
	apiErr.Details = envelope.Details

	var nested struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(envelope.Error, &apiErr.Message) != nil {
		if json.Unmarshal(envelope.Error, &nested) == nil {
			apiErr.Message = nested.Message
		}
	}
	return apiErr
}
