// Package graderclient provides typed HTTP access to the front service's
// API for interactive tools (cmd/gradercli).
package graderclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/forgecheck/grader/internal/domain"
	"github.com/forgecheck/grader/internal/errkind"
)

// Client provides typed access to the front service's API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:8080"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the front service, carrying
// its closed error-kind taxonomy.
type APIError struct {
	Status  int
	Kind    errkind.Kind
	Message string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status %d", e.Status)
	}
	return fmt.Sprintf("request failed (%d %s): %s", e.Status, e.Kind, e.Message)
}

// UploadProject submits a project template archive, returning an execution
// record whose tests list the project's baseline test names.
func (c *Client) UploadProject(ctx context.Context, name string, archive []byte) (domain.ContainerExecution, error) {
	body, contentType, err := multipartArchive("projectZip", name+".zip", archive, nil)
	if err != nil {
		return domain.ContainerExecution{}, err
	}
	var execution domain.ContainerExecution
	path := fmt.Sprintf("/projects/%s", url.PathEscape(name))
	if err := c.do(ctx, http.MethodPost, path, contentType, body, &execution); err != nil {
		return domain.ContainerExecution{}, err
	}
	return execution, nil
}

// ExecuteSubmission submits source code against projectName, optionally
// carrying test execution arguments, and returns the sealed execution
// record.
func (c *Client) ExecuteSubmission(ctx context.Context, projectName string, archive []byte, execArgs map[string]string) (domain.ContainerExecution, error) {
	var extra map[string]string
	if len(execArgs) > 0 {
		cfg := struct {
			TestExecutionArguments map[string]string `json:"testExecutionArguments,omitempty"`
		}{TestExecutionArguments: execArgs}
		cfgJSON, err := json.Marshal(cfg)
		if err != nil {
			return domain.ContainerExecution{}, fmt.Errorf("encode project config: %w", err)
		}
		extra = map[string]string{"projectConfig": string(cfgJSON)}
	}

	body, contentType, err := multipartArchive("srcZip", "submission.zip", archive, extra)
	if err != nil {
		return domain.ContainerExecution{}, err
	}
	var execution domain.ContainerExecution
	path := fmt.Sprintf("/submissions/%s", url.PathEscape(projectName))
	if err := c.do(ctx, http.MethodPost, path, contentType, body, &execution); err != nil {
		return domain.ContainerExecution{}, err
	}
	return execution, nil
}

// RemoveProject deletes a project and cancels any submissions running
// against it.
func (c *Client) RemoveProject(ctx context.Context, name string) error {
	path := fmt.Sprintf("/projects/%s", url.PathEscape(name))
	return c.do(ctx, http.MethodDelete, path, "", nil, nil)
}

// Ping checks that the front service is reachable by fetching its metrics
// endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return APIError{Status: resp.StatusCode}
	}
	return nil
}

func multipartArchive(field, filename string, archive []byte, extraFields map[string]string) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		return nil, "", fmt.Errorf("create multipart field: %w", err)
	}
	if _, err := part.Write(archive); err != nil {
		return nil, "", fmt.Errorf("write archive: %w", err)
	}
	for key, value := range extraFields {
		if err := w.WriteField(key, value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", key, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, v any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload := extractErrorPayload(resp.Body)
		return APIError{Status: resp.StatusCode, Kind: payload.Kind, Message: payload.Message}
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractErrorPayload(body io.Reader) errkind.Payload {
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return errkind.Payload{Kind: errkind.Internal}
	}
	var payload errkind.Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return errkind.Payload{Kind: errkind.Internal, Message: strings.TrimSpace(string(data))}
	}
	return payload
}
