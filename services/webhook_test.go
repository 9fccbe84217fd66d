package services

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/wize-works/helpNINJA-sub004/models"
)

func testEscalation() *models.Escalation {
	return &models.Escalation{
		ID:             primitive.NewObjectID(),
		TenantID:       primitive.NewObjectID(),
		RuleID:         primitive.NewObjectID(),
		RuleName:       "low confidence",
		ConversationID: primitive.NewObjectID().Hex(),
		UserMessage:    "where is my order",
		Confidence:     0.21,
		Trace:          []models.EscalationStep{{Description: "confidence (0.21) < 0.50", Matched: true}},
	}
}

func TestWebhookSendSignsPayload(t *testing.T) {
	const secret = "whsec_test"

	var gotBody []byte
	var gotSignature, gotTimestamp string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Helpninja-Signature")
		gotTimestamp = r.Header.Get("X-Helpninja-Timestamp")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, secret, testEscalation())
	require.NoError(t, err)

	require.NotEmpty(t, gotSignature)
	assert.True(t, VerifyWebhookSignature(secret, gotTimestamp, gotBody, gotSignature),
		"receiver-side verification must accept the sent signature")

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, "escalation.fired", payload["event"])
	assert.Equal(t, "low confidence", payload["rule_name"])
}

func TestWebhookSendRejectionNotRetried(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	sender := NewWebhookSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, "", testEscalation())
	require.Error(t, err)
	assert.Equal(t, 1, calls, "a 4xx must not be retried")
}

func TestWebhookSendRetriesServerErrors(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	sender := NewWebhookSender(5 * time.Second)
	err := sender.Send(context.Background(), server.URL, "", testEscalation())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestVerifyWebhookSignatureRejectsTampering(t *testing.T) {
	body := []byte(`{"event":"escalation.fired"}`)
	sig := SignWebhook("secret", "1700000000", body)

	assert.True(t, VerifyWebhookSignature("secret", "1700000000", body, sig))
	assert.False(t, VerifyWebhookSignature("secret", "1700000001", body, sig))
	assert.False(t, VerifyWebhookSignature("other", "1700000000", body, sig))
	assert.False(t, VerifyWebhookSignature("secret", "1700000000", []byte(`{}`), sig))
}
