// Package client talks to the engine's HTTP API from a producing client.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"beacon/models"
	"beacon/offline"
	"beacon/utils"

	"go.uber.org/zap"
)

// APIError is a non-2xx answer from the engine.
type APIError struct {
	Status  int
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("engine returned %d: %s: %s", e.Status, e.Message, e.Details)
	}
	return fmt.Sprintf("engine returned %d: %s", e.Status, e.Message)
}

// Retryable reports whether sending the same request later may succeed. Expired credentials
// count as retryable because the token is refreshed out of band.
func (e *APIError) Retryable() bool {
	switch e.Status {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.Status >= http.StatusInternalServerError
}

// EngineClient calls the engine on behalf of one authenticated producer.
type EngineClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
	Logger  *zap.Logger
}

func NewEngineClient(baseURL, token string, logger *zap.Logger) *EngineClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EngineClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
		Logger:  logger,
	}
}

func (c *EngineClient) do(ctx context.Context, method, path string, body interface{}, header http.Header, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.BaseURL, "/")+path, reader)
	if err != nil {
		return err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload utils.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&payload) == nil && payload.Message != "" {
			apiErr.Message = payload.Message
			apiErr.Details = payload.Details
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// CreateNotification posts req. idempotencyKey, when set, makes a replay return the original.
func (c *EngineClient) CreateNotification(ctx context.Context, req models.CreateRequest, idempotencyKey string) (*models.Notification, error) {
	header := http.Header{}
	if idempotencyKey != "" {
		header.Set("Idempotency-Key", idempotencyKey)
	}
	var n models.Notification
	if err := c.do(ctx, http.MethodPost, "/api/notifications", req, header, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// Deliver sends a queued create, using the queue item id as the idempotency key. Requests
// the engine will never accept are marked permanent so the queue drops them.
func (c *EngineClient) Deliver(ctx context.Context, item models.QueueItem) (*models.Notification, error) {
	n, err := c.CreateNotification(ctx, item.Request, item.ID)
	if err == nil {
		return n, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && !apiErr.Retryable() {
		c.Logger.Warn("Engine rejected queued notification",
			zap.String("itemID", item.ID),
			zap.Int("status", apiErr.Status),
			zap.String("message", apiErr.Message))
		return nil, offline.Permanent(err)
	}
	return nil, err
}

func (c *EngineClient) ListNotifications(ctx context.Context, filter models.ListFilter) ([]models.Notification, error) {
	q := url.Values{}
	if filter.Limit > 0 {
		q.Set("limit", strconv.FormatInt(filter.Limit, 10))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.FormatInt(filter.Offset, 10))
	}
	if filter.UnreadOnly {
		q.Set("unread", "true")
	}
	path := "/api/notifications"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Notifications []models.Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Notifications, nil
}

func (c *EngineClient) UnreadCount(ctx context.Context) (int64, error) {
	var out struct {
		Unread int64 `json:"unread"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/notifications/unread-count", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Unread, nil
}

func (c *EngineClient) MarkRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/api/notifications/"+url.PathEscape(id)+"/read", nil, nil, nil)
}

func (c *EngineClient) MarkAllRead(ctx context.Context) (int64, error) {
	var out struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPatch, "/api/notifications/read-all", nil, nil, &out); err != nil {
		return 0, err
	}
	return out.Updated, nil
}

func (c *EngineClient) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/notifications/"+url.PathEscape(id), nil, nil, nil)
}

// Click reports a notification click and returns where the user should be taken.
func (c *EngineClient) Click(ctx context.Context, id string) (models.ClickOutcome, error) {
	var out models.ClickOutcome
	err := c.do(ctx, http.MethodPost, "/api/notifications/"+url.PathEscape(id)+"/click", nil, nil, &out)
	return out, err
}

func (c *EngineClient) VAPIDPublicKey(ctx context.Context) (string, error) {
	var out struct {
		PublicKey string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/push/vapid-public-key", nil, nil, &out); err != nil {
		return "", err
	}
	return out.PublicKey, nil
}

func (c *EngineClient) Subscribe(ctx context.Context, in models.SubscribeInput) (*models.Subscription, error) {
	var sub models.Subscription
	if err := c.do(ctx, http.MethodPost, "/api/push/subscriptions", in, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

func (c *EngineClient) Unsubscribe(ctx context.Context, endpoint string) error {
	body := map[string]string{"endpoint": endpoint}
	return c.do(ctx, http.MethodDelete, "/api/push/subscriptions", body, nil, nil)
}

var _ offline.Deliverer = (*EngineClient)(nil)
