package greenapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/logger"
)

func newTestClient(baseURL string) *Client {
	return NewClient(config.GreenAPIConfig{
		InstanceID: "1101000001",
		APIToken:   "token-abc",
		BaseURL:    baseURL,
		Timeout:    2000,
	}, logger.NewNoOpLogger())
}

func TestSendText(t *testing.T) {
	var gotPath string
	var gotBody sendMessageRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		json.NewEncoder(w).Encode(sendMessageResponse{IDMessage: "out-1"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.SendText(context.Background(), "972501234567@c.us", "ב-15/01/2024 נספרו 137 מכולות.")

	require.NoError(t, err)
	assert.Equal(t, "/waInstance1101000001/sendMessage/token-abc", gotPath)
	assert.Equal(t, "972501234567@c.us", gotBody.ChatID)
	assert.Equal(t, "ב-15/01/2024 נספרו 137 מכולות.", gotBody.Message)
}

func TestSendTextFailures(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "internal", http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).SendText(context.Background(), "chat", "msg")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrSendFailed)
	})

	t.Run("quota exhausted maps to its own sentinel", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(statusQuotaExceeded)
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).SendText(context.Background(), "chat", "msg")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.NotErrorIs(t, err, ErrSendFailed)
	})

	t.Run("unreachable gateway", func(t *testing.T) {
		err := newTestClient("http://127.0.0.1:1").SendText(context.Background(), "chat", "msg")
		assert.ErrorIs(t, err, ErrSendFailed)
	})

	t.Run("unparseable success body is not an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer srv.Close()

		err := newTestClient(srv.URL).SendText(context.Background(), "chat", "msg")
		assert.NoError(t, err)
	})
}

func TestWebhookClassification(t *testing.T) {
	text := Webhook{
		TypeWebhook: "incomingMessageReceived",
		IDMessage:   "in-1",
		Timestamp:   1705312800,
		SenderData:  SenderData{ChatID: "972501234567@c.us", SenderName: "דני"},
		MessageData: MessageData{
			TypeMessage:     "textMessage",
			TextMessageData: &TextMessageData{TextMessage: "כמה מכולות נפרקו היום"},
		},
	}
	assert.True(t, text.IsIncomingText())

	q := text.ToInboundQuery()
	assert.Equal(t, "in-1", q.MessageID)
	assert.Equal(t, "972501234567@c.us", q.ChatID)
	assert.Equal(t, "דני", q.Sender)
	assert.Equal(t, "כמה מכולות נפרקו היום", q.Text)
	assert.Equal(t, int64(1705312800), q.ReceivedAt.Unix())

	t.Run("non-text message is dropped", func(t *testing.T) {
		image := text
		image.MessageData = MessageData{TypeMessage: "imageMessage"}
		assert.False(t, image.IsIncomingText())
	})

	t.Run("outgoing status webhook is dropped", func(t *testing.T) {
		status := text
		status.TypeWebhook = "outgoingMessageStatus"
		assert.False(t, status.IsIncomingText())
	})
}
