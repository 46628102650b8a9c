package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/mbellis/driftq/internal/events"
)

// HTTPConfig configures the HTTP document store client.
type HTTPConfig struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	UserAgent  string
}

// HTTPStore talks to a REST document API:
//
//	POST   {base}/api/v1/collections/{collection}/documents
//	PUT    {base}/api/v1/collections/{collection}/documents/{id}
//	PATCH  {base}/api/v1/collections/{collection}/documents/{id}
//	DELETE {base}/api/v1/collections/{collection}/documents/{id}
//
// Transport-level retry with exponential backoff covers rate limits and 5xx
// responses; it is independent of the sync engine's drain-level retry
// ceiling.
type HTTPStore struct {
	client    *http.Client
	baseURL   string
	token     string
	userAgent string
	logger    *events.Logger

	maxRetries int
	retryDelay time.Duration
}

// NewHTTPStore creates an HTTP document store client.
func NewHTTPStore(cfg HTTPConfig, logger *events.Logger) *HTTPStore {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			NextProtos: []string{"h2", "http/1.1"},
		},
	}
	if err := http2.ConfigureTransport(transport); err != nil {
		logger.WithError(err).Warn("Failed to configure HTTP/2")
	}

	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = time.Second
	}

	return &HTTPStore{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		userAgent:  cfg.UserAgent,
		logger:     logger.WithField("component", "http_remote"),
		maxRetries: cfg.MaxRetries,
		retryDelay: retryDelay,
	}
}

// Create adds a document, letting the server assign an id when documentID is
// empty.
func (s *HTTPStore) Create(ctx context.Context, collection, documentID string, fields map[string]any) (string, error) {
	var (
		method = http.MethodPost
		path   = s.collectionPath(collection)
	)
	if documentID != "" {
		method = http.MethodPut
		path = s.documentPath(collection, documentID)
	}

	body, err := s.do(ctx, method, path, fields)
	if err != nil {
		return "", err
	}

	if documentID != "" {
		return documentID, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil || created.ID == "" {
		return "", fmt.Errorf("parse create response: missing document id")
	}
	return created.ID, nil
}

// Update merges fields into an existing document.
func (s *HTTPStore) Update(ctx context.Context, collection, documentID string, fields map[string]any) error {
	_, err := s.do(ctx, http.MethodPatch, s.documentPath(collection, documentID), fields)
	return err
}

// Delete removes a document.
func (s *HTTPStore) Delete(ctx context.Context, collection, documentID string) error {
	_, err := s.do(ctx, http.MethodDelete, s.documentPath(collection, documentID), nil)
	return err
}

// Close releases idle connections.
func (s *HTTPStore) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *HTTPStore) collectionPath(collection string) string {
	return "/api/v1/collections/" + url.PathEscape(collection) + "/documents"
}

func (s *HTTPStore) documentPath(collection, documentID string) string {
	return s.collectionPath(collection) + "/" + url.PathEscape(documentID)
}

// do executes one request with retry and returns the response body.
func (s *HTTPStore) do(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	var reqBody []byte
	if payload != nil {
		var err error
		reqBody, err = json.Marshal(encodeFields(payload))
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	fullURL := s.baseURL + path

	s.logger.WithFields(map[string]any{
		"method": method,
		"url":    fullURL,
		"size":   len(reqBody),
	}).Debug("Sending request")

	var respBody []byte
	err := s.retry(ctx, func() error {
		var reader io.Reader
		if reqBody != nil {
			reader = bytes.NewReader(reqBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if s.userAgent != "" {
			req.Header.Set("User-Agent", s.userAgent)
		}
		if s.token != "" {
			req.Header.Set("Authorization", "Bearer "+s.token)
		}

		resp, err := s.client.Do(req)
		if err != nil {
			return &retryableError{fmt.Errorf("execute request: %w", err)}
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return &retryableError{fmt.Errorf("read response: %w", err)}
		}

		if isRetryableStatus(resp.StatusCode) {
			return &retryableError{&StatusError{Code: resp.StatusCode, Body: string(body)}}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &StatusError{Code: resp.StatusCode, Body: string(body)}
		}

		respBody = body
		return nil
	})
	if err != nil {
		return nil, err
	}

	return respBody, nil
}

// retry executes fn with exponential backoff on retryable failures.
func (s *HTTPStore) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := s.retryDelay

	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			s.logger.WithFields(map[string]any{
				"attempt": attempt,
				"delay":   delay,
			}).Debug("Retrying request")

			select {
			case <-time.After(delay):
				delay *= 2
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if _, retryable := err.(*retryableError); !retryable {
			return err
		}
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// StatusError is a non-2xx response. It survives retry wrapping, so callers
// can recover the status with errors.As.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

type retryableError struct {
	err error
}

func (e *retryableError) Error() string { return e.err.Error() }

func (e *retryableError) Unwrap() error { return e.err }

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests ||
		(status >= 500 && status < 600)
}

// encodeFields converts native field values into JSON-safe forms. time.Time
// values travel as RFC 3339 strings, at any nesting depth.
func encodeFields(fields map[string]any) map[string]any {
	encoded := make(map[string]any, len(fields))
	for name, value := range fields {
		encoded[name] = encodeValue(value)
	}
	return encoded
}

func encodeValue(value any) any {
	switch v := value.(type) {
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case []any:
		list := make([]any, len(v))
		for i, item := range v {
			list[i] = encodeValue(item)
		}
		return list
	default:
		return value
	}
}
