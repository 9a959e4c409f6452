package greenapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"port-ops-bot/internal/common/config"
	commonhttp "port-ops-bot/internal/common/http"
	"port-ops-bot/internal/common/logger"
)

var (
	ErrSendFailed    = errors.New("SEND_FAILED")
	ErrQuotaExceeded = errors.New("QUOTA_EXCEEDED")
)

// GREEN-API returns 466 when the instance's monthly message quota is spent.
const statusQuotaExceeded = 466

// Client sends outbound messages through a GREEN-API instance.
type Client struct {
	baseURL    string
	instanceID string
	apiToken   string
	httpClient *commonhttp.Client
	logger     logger.Logger
}

func NewClient(cfg config.GreenAPIConfig, log logger.Logger) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Millisecond
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		instanceID: cfg.InstanceID,
		apiToken:   cfg.APIToken,
		httpClient: commonhttp.NewClient(timeout),
		logger:     log,
	}
}

// SendText delivers one text message to a chat. Quota exhaustion is reported
// with its own sentinel so callers can alert on it instead of retrying.
func (c *Client) SendText(ctx context.Context, chatID, message string) error {
	url := fmt.Sprintf("%s/waInstance%s/sendMessage/%s", c.baseURL, c.instanceID, c.apiToken)

	body, err := json.Marshal(sendMessageRequest{ChatID: chatID, Message: message})
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrSendFailed, err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == statusQuotaExceeded {
		return fmt.Errorf("%w: instance %s", ErrQuotaExceeded, c.instanceID)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrSendFailed, resp.StatusCode, snippet)
	}

	var parsed sendMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		// Delivery already succeeded; an unparseable body only costs the id.
		c.logger.Debug("sendMessage response not parseable", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	c.logger.Debug("message sent", map[string]interface{}{
		"chat_id":    chatID,
		"id_message": parsed.IDMessage,
	})
	return nil
}
