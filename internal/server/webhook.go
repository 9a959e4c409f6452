package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	stderrors "port-ops-bot/internal/common/errors"
	"port-ops-bot/internal/gateway/greenapi"
	"port-ops-bot/internal/models"
)

const maxWebhookBody = 1 << 20

// webhookSchema gates the payload shape before any field is trusted.
const webhookSchema = `{
	"type": "object",
	"required": ["typeWebhook"],
	"properties": {
		"typeWebhook": {"type": "string", "minLength": 1},
		"idMessage": {"type": "string"},
		"timestamp": {"type": "integer"},
		"senderData": {
			"type": "object",
			"properties": {
				"chatId": {"type": "string"},
				"sender": {"type": "string"},
				"senderName": {"type": "string"}
			}
		},
		"messageData": {
			"type": "object",
			"properties": {
				"typeMessage": {"type": "string"},
				"textMessageData": {
					"type": "object",
					"properties": {
						"textMessage": {"type": "string"}
					}
				}
			}
		}
	}
}`

var compiledWebhookSchema = gojsonschema.NewStringLoader(webhookSchema)

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}

	validation, err := gojsonschema.Validate(compiledWebhookSchema, gojsonschema.NewBytesLoader(body))
	if err != nil || !validation.Valid() {
		s.logger.Warn("webhook payload rejected", map[string]interface{}{
			"remote": r.RemoteAddr,
		})
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	var hook greenapi.Webhook
	if err := json.Unmarshal(body, &hook); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	// Non-text events are acknowledged so the gateway stops redelivering.
	if !hook.IsIncomingText() {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if s.isDuplicate(r.Context(), hook.IDMessage) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "duplicate"})
		return
	}

	q := hook.ToInboundQuery()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.processAndReply(q)
	}()

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (s *Server) authorized(r *http.Request) bool {
	token := s.cfg.GreenAPI.WebhookToken
	if token == "" {
		return true
	}
	header := r.Header.Get("Authorization")
	return strings.TrimPrefix(header, "Bearer ") == token && strings.HasPrefix(header, "Bearer ")
}

// isDuplicate claims the message id in Redis. First delivery wins; redelivery
// inside the window is dropped. Without Redis every delivery is processed.
func (s *Server) isDuplicate(ctx context.Context, messageID string) bool {
	if s.dedup == nil || messageID == "" {
		return false
	}
	window := time.Duration(s.cfg.Pipeline.DedupWindow) * time.Second
	if window <= 0 {
		window = 24 * time.Hour
	}
	claimed, err := s.dedup.SetNX(ctx, "dedup:"+messageID, 1, window).Result()
	if err != nil {
		// Dedup is an optimization; a broken store must not drop messages.
		s.logger.Warn("dedup check unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return false
	}
	return !claimed
}

// processAndReply runs detached from the webhook request so the gateway gets
// its acknowledgment immediately. Delivery is retried per the send-failure
// policy; quota exhaustion is terminal and alerts instead.
func (s *Server) processAndReply(q models.InboundQuery) {
	ctx, cancel := context.WithTimeout(context.Background(), s.processTimeout)
	defer cancel()

	reply := s.processor.Process(ctx, q)

	attempts := 1 + stderrors.GetRetryCount(stderrors.ErrCodeSendFailed)
	var std *stderrors.StandardError
	for i := 1; i <= attempts; i++ {
		err := s.sender.SendText(ctx, q.ChatID, reply)
		if err == nil {
			return
		}
		if errors.Is(err, greenapi.ErrQuotaExceeded) {
			std = stderrors.NewQuotaExceededError(err.Error())
			if s.notifier != nil {
				s.notifier.NotifyQuotaExceeded(ctx, s.cfg.GreenAPI.InstanceID)
			}
			break
		}
		std = stderrors.NewSendFailedError(err)
		if i < attempts {
			select {
			case <-ctx.Done():
				i = attempts
			case <-time.After(time.Duration(i) * time.Second):
			}
		}
	}
	s.logger.Error("reply delivery failed", map[string]interface{}{
		"message_id": q.MessageID,
		"chat_id":    q.ChatID,
		"category":   stderrors.GetErrorCategory(std.Code),
		"retryable":  std.Retryable,
		"error":      std.Error(),
		"details":    std.Details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
