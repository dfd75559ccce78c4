package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"beacon/models"

	"github.com/hibiken/asynq"
)

// MailGateway posts email payloads to the external mail service.
type MailGateway struct {
	URL   string
	Token string
	HTTP  *http.Client
}

func NewMailGateway(url, token string) *MailGateway {
	return &MailGateway{URL: url, Token: token, HTTP: &http.Client{Timeout: 15 * time.Second}}
}

// Send returns an error wrapping asynq.SkipRetry when the gateway refuses the payload outright.
func (g *MailGateway) Send(ctx context.Context, payload models.EmailPayload) error {
	if g.URL == "" {
		return fmt.Errorf("mail gateway url is not configured: %w", asynq.SkipRetry)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.Token != "" {
		req.Header.Set("Authorization", "Bearer "+g.Token)
	}

	resp, err := g.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mail gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = fmt.Errorf("mail gateway returned %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError &&
		resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode != http.StatusRequestTimeout {
		return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
	}
	return err
}
