package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookNotifier_Send(t *testing.T) {
	var received Notification

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	err := n.Send(context.Background(), Notification{
		To:      "reviewer@example.com",
		Subject: "Step overdue",
		Body:    "The approval step is overdue.",
	})
	require.NoError(t, err)
	assert.Equal(t, "reviewer@example.com", received.To)
	assert.Equal(t, "Step overdue", received.Subject)
}

func TestWebhookNotifier_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL)
	err := n.Send(context.Background(), Notification{To: "x@example.com"})
	assert.Error(t, err)
}

func TestWebhookNotifier_Send_Unreachable(t *testing.T) {
	n := NewWebhookNotifier("http://127.0.0.1:1/notify")
	err := n.Send(context.Background(), Notification{To: "x@example.com"})
	assert.Error(t, err, "transport failures surface as errors, not panics")
}
