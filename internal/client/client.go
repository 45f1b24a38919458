package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Duell10111/artemis-exam-agent/internal/config"
	"github.com/Duell10111/artemis-exam-agent/internal/model"
)

// ErrNoSubmission is returned when the server holds no submission yet.
var ErrNoSubmission = errors.New("no submission")

var jsonNull = []byte("null")

// StatusError is returned for any non-2xx server response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Code)
}

// APIClient talks JSON to the Artemis REST API.
type APIClient struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewAPIClient creates a client for baseURL. A zero timeout disables the
// client-side deadline.
func NewAPIClient(baseURL, token string, timeout time.Duration) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

// FetchStudentExam loads the student exam prepared for conduction.
func (c *APIClient) FetchStudentExam(ctx context.Context, courseID, examID int64) (*model.StudentExam, error) {
	var exam model.StudentExam
	found, err := c.do(ctx, http.MethodGet, config.CacheKey.ConductionPath(courseID, examID), nil, &exam)
	if err != nil {
		return nil, fmt.Errorf("fetch student exam: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("fetch student exam: empty response")
	}
	return &exam, nil
}

// do sends body as JSON and decodes the response into out. It returns
// false when the server answered 204, an empty body or a JSON null.
func (c *APIClient) do(ctx context.Context, method, path string, body, out any) (bool, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return false, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return false, fmt.Errorf("read response: %w", err)
	}

	if res.StatusCode/100 != 2 {
		return false, &StatusError{Method: method, Path: path, Code: res.StatusCode, Body: string(raw)}
	}
	trimmed := bytes.TrimSpace(raw)
	if res.StatusCode == http.StatusNoContent || len(trimmed) == 0 || bytes.Equal(trimmed, jsonNull) || out == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode response: %w", err)
	}
	return true, nil
}
