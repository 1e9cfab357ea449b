package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/wastecollect/waste-dispatch-api/models"
)

// Webhook request headers
const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderTimestamp = "X-Webhook-Timestamp"
	HeaderEvent     = "X-Webhook-Event"
	HeaderDelivery  = "X-Webhook-Delivery"
)

// WebhookSender posts signed events to organization endpoints
type WebhookSender struct {
	client  *http.Client
	retries int
	backoff time.Duration
	now     func() time.Time
}

// NewWebhookSender returns a sender whose every call is bounded by timeout. retries is the
// number of extra attempts after a failed one; zero means at most one delivery attempt.
func NewWebhookSender(timeout time.Duration, retries int) *WebhookSender {
	if retries < 0 {
		retries = 0
	}
	return &WebhookSender{
		client:  &http.Client{Timeout: timeout},
		retries: retries,
		backoff: 500 * time.Millisecond,
		now:     time.Now,
	}
}

// Sign returns the hex HMAC-SHA256 of timestamp + "." + body under secret
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks a signature header value produced by Deliver
func Verify(secret, timestamp string, body []byte, header string) bool {
	want := "sha256=" + Sign(secret, timestamp, body)
	return hmac.Equal([]byte(want), []byte(header))
}

// Deliver posts event to hook. A non-2xx answer counts as a failure.
func (s *WebhookSender) Deliver(ctx context.Context, hook models.WebhookRegistration, event models.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	delivery := uuid.NewString()

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.backoff):
			}
		}
		if lastErr = s.post(ctx, hook, event.EventType, delivery, body); lastErr == nil {
			return nil
		}
	}
	return lastErr
}

func (s *WebhookSender) post(ctx context.Context, hook models.WebhookRegistration, eventType, delivery string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	ts := strconv.FormatInt(s.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, eventType)
	req.Header.Set(HeaderDelivery, delivery)
	req.Header.Set(HeaderTimestamp, ts)
	if hook.Secret != "" {
		req.Header.Set(HeaderSignature, "sha256="+Sign(hook.Secret, ts, body))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook answered %d", resp.StatusCode)
	}
	return nil
}
