// Package alerts notifies the operations channel when the bot loses a
// backing store or exhausts its messaging quota. Notifications go to an SNS
// topic and optionally by email, rate-limited per alert key so a flapping
// dependency does not flood the channel.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	commonaws "port-ops-bot/internal/common/aws"
	"port-ops-bot/internal/common/config"
	"port-ops-bot/internal/common/logger"
)

// Publisher publishes to an SNS topic.
type Publisher interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Mailer sends an email through SES.
type Mailer interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

var (
	_ Publisher = (*commonaws.SNSClient)(nil)
	_ Mailer    = (*commonaws.SESClient)(nil)
)

// Notifier delivers operational alerts.
type Notifier struct {
	cfg      config.AlertsConfig
	sns      Publisher
	ses      Mailer
	logger   logger.Logger
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	lastSent map[string]time.Time
}

// NewNotifier creates a notifier. sns and ses may each be nil; the notifier
// uses whichever channels it has.
func NewNotifier(cfg config.AlertsConfig, snsClient Publisher, sesClient Mailer, log logger.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		sns:      snsClient,
		ses:      sesClient,
		logger:   log,
		interval: 15 * time.Minute,
		now:      time.Now,
		lastSent: map[string]time.Time{},
	}
}

// WithClock overrides the clock. Test hook.
func (n *Notifier) WithClock(now func() time.Time) *Notifier {
	n.now = now
	return n
}

// Notify sends the alert unless the same key fired within the rate-limit
// window. Delivery failures are logged, never propagated.
func (n *Notifier) Notify(ctx context.Context, key, subject, message string) {
	if !n.cfg.Enabled {
		return
	}
	if !n.shouldSend(key) {
		return
	}

	if n.sns != nil && n.cfg.SNSTopicARN != "" {
		_, err := n.sns.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(n.cfg.SNSTopicARN),
			Subject:  aws.String(subject),
			Message:  aws.String(message),
		})
		if err != nil {
			n.logger.Error("alert publish failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}

	if n.ses != nil && n.cfg.EmailFrom != "" && n.cfg.EmailTo != "" {
		_, err := n.ses.SendEmail(ctx, &ses.SendEmailInput{
			Source:      aws.String(n.cfg.EmailFrom),
			Destination: &sestypes.Destination{ToAddresses: []string{n.cfg.EmailTo}},
			Message: &sestypes.Message{
				Subject: &sestypes.Content{Data: aws.String(subject)},
				Body: &sestypes.Body{
					Text: &sestypes.Content{Data: aws.String(message)},
				},
			},
		})
		if err != nil {
			n.logger.Error("alert email failed", map[string]interface{}{
				"key":   key,
				"error": err.Error(),
			})
		}
	}
}

// NotifyStoreDown reports an unhealthy backing store.
func (n *Notifier) NotifyStoreDown(ctx context.Context, store string, cause error) {
	n.Notify(ctx,
		"store:"+store,
		fmt.Sprintf("port-ops-bot: %s unavailable", store),
		fmt.Sprintf("Health check for %s failed at %s: %v", store, n.now().UTC().Format(time.RFC3339), cause))
}

// NotifyQuotaExceeded reports message-quota exhaustion on the WhatsApp
// gateway instance.
func (n *Notifier) NotifyQuotaExceeded(ctx context.Context, instanceID string) {
	n.Notify(ctx,
		"quota:"+instanceID,
		"port-ops-bot: messaging quota exceeded",
		fmt.Sprintf("GREEN-API instance %s rejected a send with quota exhausted at %s.", instanceID, n.now().UTC().Format(time.RFC3339)))
}

func (n *Notifier) shouldSend(key string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.now()
	if last, ok := n.lastSent[key]; ok && now.Sub(last) < n.interval {
		return false
	}
	n.lastSent[key] = now
	return true
}
