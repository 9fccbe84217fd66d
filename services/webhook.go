package services

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/wize-works/helpNINJA-sub004/models"
)

// WebhookSender delivers escalations to tenant-configured HTTP
// endpoints. Payloads are signed with the destination's shared secret
// so receivers can verify origin.
type WebhookSender struct {
	client  *http.Client
	timeout time.Duration
}

func NewWebhookSender(timeout time.Duration) *WebhookSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSender{
		client:  &http.Client{Timeout: timeout},
		timeout: timeout,
	}
}

type webhookPayload struct {
	Event          string                  `json:"event"`
	TenantID       string                  `json:"tenant_id"`
	RuleID         string                  `json:"rule_id"`
	RuleName       string                  `json:"rule_name"`
	ConversationID string                  `json:"conversation_id"`
	UserMessage    string                  `json:"user_message"`
	UserEmail      string                  `json:"user_email,omitempty"`
	Confidence     float64                 `json:"confidence"`
	Trace          []models.EscalationStep `json:"trace"`
	Timestamp      int64                   `json:"timestamp"`
}

// Send POSTs the escalation to target, retrying transient failures.
// The X-Helpninja-Signature header carries an HMAC-SHA256 of the body
// keyed by secret, computed over timestamp + "." + body.
func (w *WebhookSender) Send(ctx context.Context, target, secret string, escalation *models.Escalation) error {
	payload := webhookPayload{
		Event:          "escalation.fired",
		TenantID:       escalation.TenantID.Hex(),
		RuleID:         escalation.RuleID.Hex(),
		RuleName:       escalation.RuleName,
		ConversationID: escalation.ConversationID,
		UserMessage:    escalation.UserMessage,
		UserEmail:      escalation.UserEmail,
		Confidence:     escalation.Confidence,
		Trace:          escalation.Trace,
		Timestamp:      time.Now().Unix(),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	timestamp := strconv.FormatInt(payload.Timestamp, 10)
	signature := SignWebhook(secret, timestamp, body)

	return retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
			if err != nil {
				return retry.Unrecoverable(err)
			}
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("X-Helpninja-Timestamp", timestamp)
			if secret != "" {
				req.Header.Set("X-Helpninja-Signature", signature)
			}

			resp, err := w.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				// The endpoint rejected the payload; retrying won't help
				return retry.Unrecoverable(fmt.Errorf("webhook rejected with status %d", resp.StatusCode))
			}
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		},
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
}

// SignWebhook computes the signature a receiver should compare against.
func SignWebhook(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookSignature is the receiver-side check, exported so
// integration consumers can reuse it.
func VerifyWebhookSignature(secret, timestamp string, body []byte, signature string) bool {
	expected := SignWebhook(secret, timestamp, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}
