// Package greenapi integrates with the GREEN-API WhatsApp gateway: inbound
// webhook payloads and the outbound sendMessage call.
package greenapi

import (
	"time"

	"port-ops-bot/internal/models"
)

const (
	webhookIncomingMessage = "incomingMessageReceived"
	typeTextMessage        = "textMessage"
)

// Webhook is the notification body GREEN-API posts for instance events.
type Webhook struct {
	TypeWebhook string      `json:"typeWebhook"`
	IDMessage   string      `json:"idMessage"`
	Timestamp   int64       `json:"timestamp"`
	SenderData  SenderData  `json:"senderData"`
	MessageData MessageData `json:"messageData"`
}

type SenderData struct {
	ChatID     string `json:"chatId"`
	Sender     string `json:"sender"`
	SenderName string `json:"senderName"`
}

type MessageData struct {
	TypeMessage     string           `json:"typeMessage"`
	TextMessageData *TextMessageData `json:"textMessageData,omitempty"`
}

type TextMessageData struct {
	TextMessage string `json:"textMessage"`
}

// IsIncomingText reports whether the webhook is an inbound text message the
// pipeline should process. Every other event type is acknowledged and
// dropped.
func (w Webhook) IsIncomingText() bool {
	return w.TypeWebhook == webhookIncomingMessage &&
		w.MessageData.TypeMessage == typeTextMessage &&
		w.MessageData.TextMessageData != nil &&
		w.MessageData.TextMessageData.TextMessage != ""
}

// ToInboundQuery converts the webhook into the pipeline's inbound message.
func (w Webhook) ToInboundQuery() models.InboundQuery {
	return models.InboundQuery{
		MessageID:  w.IDMessage,
		ChatID:     w.SenderData.ChatID,
		Sender:     w.SenderData.SenderName,
		Text:       w.MessageData.TextMessageData.TextMessage,
		ReceivedAt: time.Unix(w.Timestamp, 0).UTC(),
	}
}

type sendMessageRequest struct {
	ChatID  string `json:"chatId"`
	Message string `json:"message"`
}

type sendMessageResponse struct {
	IDMessage string `json:"idMessage"`
}
