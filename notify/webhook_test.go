package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"papertrade/alerts"
)

func testRule() alerts.Rule {
	return alerts.Rule{
		ID:           "01JRULE",
		UserID:       "u1",
		NotifyTarget: "chan-1",
		Symbol:       "BNB/USDT",
		TargetPrice:  decimal.RequireFromString("700"),
		Direction:    alerts.DirectionAbove,
		CreatedAt:    time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC),
	}
}

func TestWebhookNotify(t *testing.T) {
	t.Parallel()

	var got webhookPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL)
	err := wh.Notify(context.Background(), testRule(), decimal.RequireFromString("701.5"))
	require.NoError(t, err)

	assert.Equal(t, "01JRULE", got.RuleID)
	assert.Equal(t, "chan-1", got.Target)
	assert.Equal(t, "BNB/USDT", got.Symbol)
	assert.Equal(t, "ABOVE", got.Direction)
	assert.Equal(t, "700", got.TargetPrice)
	assert.Equal(t, "701.5", got.Price)
}

func TestWebhookNotifyErrorStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	wh := NewWebhook(srv.URL)
	err := wh.Notify(context.Background(), testRule(), decimal.RequireFromString("701.5"))
	assert.Error(t, err)
}
