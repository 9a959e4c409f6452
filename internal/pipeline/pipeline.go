// Package pipeline runs an inbound question through classification,
// parameter resolution, query dispatch and response composition, falling
// back to the generative path when no rule applies. Every message yields
// exactly one reply and exactly one audit record.
package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	stderrors "port-ops-bot/internal/common/errors"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/common/metrics"
	"port-ops-bot/internal/common/observability"
	"port-ops-bot/internal/models"
	"port-ops-bot/internal/pipeline/classify"
	"port-ops-bot/internal/pipeline/dates"
	"port-ops-bot/internal/pipeline/dispatch"
	"port-ops-bot/internal/pipeline/fallback"
	"port-ops-bot/internal/pipeline/resolve"
	"port-ops-bot/internal/pipeline/respond"
)

// Dispatcher executes the data query for a resolved intent.
type Dispatcher interface {
	Dispatch(ctx context.Context, intent models.Intent, params models.ParameterSet) (*models.QueryResult, error)
}

// FallbackHandler runs the generative path for unmatched questions.
type FallbackHandler interface {
	Answer(ctx context.Context, question string) fallback.Outcome
}

// Recorder persists the audit entry for one processed message.
type Recorder interface {
	Record(entry models.LogEntry)
}

// Pipeline wires the stages for one deployment.
type Pipeline struct {
	classifier *classify.Classifier
	resolver   *resolve.Resolver
	dispatcher Dispatcher
	fallback   FallbackHandler
	composer   *respond.Composer
	audit      Recorder
	logger     logger.Logger
	obs        *observability.Observability
	now        func() time.Time
}

// New assembles a pipeline. fb may be nil, in which case unmatched questions
// get the degraded reply directly.
func New(classifier *classify.Classifier, resolver *resolve.Resolver, dispatcher Dispatcher, fb FallbackHandler, composer *respond.Composer, audit Recorder, log logger.Logger) *Pipeline {
	return &Pipeline{
		classifier: classifier,
		resolver:   resolver,
		dispatcher: dispatcher,
		fallback:   fb,
		composer:   composer,
		audit:      audit,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock overrides the clock. Test hook.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// WithObservability attaches the OpenTelemetry metrics plane.
func (p *Pipeline) WithObservability(obs *observability.Observability) *Pipeline {
	p.obs = obs
	return p
}

// Process handles one inbound question and returns the reply text. It never
// returns an error: every failure mode maps to a user-facing Hebrew message,
// and the audit record is written exactly once regardless of path.
func (p *Pipeline) Process(ctx context.Context, q models.InboundQuery) string {
	start := p.now()

	cls := p.classifier.Classify(q.Text)

	entry := models.LogEntry{
		ID:            uuid.NewString(),
		MessageID:     q.MessageID,
		ChatID:        q.ChatID,
		QuestionText:  q.Text,
		Intent:        cls.Intent,
		Parameters:    map[string]interface{}{},
		FallbackState: models.FallbackNotAttempted,
		CreatedAt:     start,
	}

	response := p.execute(ctx, q, cls, &entry)

	entry.ResponseText = response
	entry.DurationMS = p.now().Sub(start).Milliseconds()

	p.audit.Record(entry)

	metrics.MessagesProcessed.WithLabelValues(string(cls.Intent)).Inc()
	metrics.MessageDuration.WithLabelValues(string(cls.Intent)).Observe(float64(entry.DurationMS) / 1000)
	if p.obs != nil {
		status := "ok"
		if entry.ErrorCode != "" {
			status = entry.ErrorCode
		}
		p.obs.RecordMessageProcessed(ctx, status)
		p.obs.RecordMessageDuration(ctx, time.Duration(entry.DurationMS)*time.Millisecond, status)
	}

	p.logger.Info("message processed", map[string]interface{}{
		"message_id":     q.MessageID,
		"intent":         string(cls.Intent),
		"fallback_state": string(entry.FallbackState),
		"error_code":     entry.ErrorCode,
		"duration_ms":    entry.DurationMS,
	})
	return response
}

func (p *Pipeline) execute(ctx context.Context, q models.InboundQuery, cls classify.Classification, entry *models.LogEntry) string {
	// Both unmatched text and explicit analysis requests go to the
	// generative path; only resolvable intents reach the dispatcher.
	switch cls.Intent {
	case models.IntentUnknown, models.IntentGenericAnalysis:
		return p.runFallback(ctx, q.Text, entry)
	}

	params, err := p.resolver.Resolve(cls.Intent, cls.Slots)
	if err != nil {
		std := standardize(err)
		entry.ErrorCode = string(std.Code)
		metrics.PipelineFailures.WithLabelValues("resolve", entry.ErrorCode).Inc()
		p.logger.Warn("parameter resolution failed", map[string]interface{}{
			"message_id": q.MessageID,
			"intent":     string(cls.Intent),
			"category":   stderrors.GetErrorCategory(std.Code),
			"error":      std.Error(),
			"details":    std.Details,
		})
		return p.composer.ComposeError(err)
	}
	entry.Parameters = params.ToMap()

	result, err := p.dispatcher.Dispatch(ctx, cls.Intent, params)
	if err != nil {
		std := standardize(err)
		entry.ErrorCode = string(std.Code)
		metrics.PipelineFailures.WithLabelValues("dispatch", entry.ErrorCode).Inc()
		p.logger.Warn("query dispatch failed", map[string]interface{}{
			"message_id": q.MessageID,
			"intent":     string(cls.Intent),
			"category":   stderrors.GetErrorCategory(std.Code),
			"retryable":  std.Retryable,
			"error":      std.Error(),
			"details":    std.Details,
		})
		return p.composer.ComposeError(err)
	}

	return p.composer.Compose(cls.Intent, params, result)
}

func (p *Pipeline) runFallback(ctx context.Context, question string, entry *models.LogEntry) string {
	if p.fallback == nil {
		entry.FallbackState = models.FallbackDegraded
		metrics.FallbackOutcomes.WithLabelValues(string(models.FallbackDegraded)).Inc()
		return p.composer.Degraded()
	}

	entry.FallbackState = models.FallbackAttempting
	out := p.fallback.Answer(ctx, question)
	entry.FallbackState = out.State
	metrics.FallbackOutcomes.WithLabelValues(string(out.State)).Inc()

	if out.State != models.FallbackSucceeded {
		std := stderrors.NewFallbackDegradedError(errors.New("generative path returned no answer"))
		entry.ErrorCode = string(std.Code)
		metrics.PipelineFailures.WithLabelValues("fallback", entry.ErrorCode).Inc()
		p.logger.Warn("fallback degraded", map[string]interface{}{
			"category":  stderrors.GetErrorCategory(std.Code),
			"retryable": std.Retryable,
			"error":     std.Error(),
		})
		return p.composer.Degraded()
	}
	return out.Text
}

// standardize wraps a stage sentinel into the structured taxonomy error that
// carries the code, retryability and details for the log entry.
func standardize(err error) *stderrors.StandardError {
	switch {
	case errors.Is(err, dates.ErrIncompleteRange):
		return stderrors.NewIncompleteRangeError(err.Error())
	case errors.Is(err, dates.ErrMalformed):
		return stderrors.NewNormalizationError(err.Error())
	case errors.Is(err, resolve.ErrMissingParameter):
		return stderrors.NewMissingParameterError(err.Error())
	case errors.Is(err, dispatch.ErrQueryTimeout):
		return stderrors.NewQueryTimeoutError(err.Error())
	default:
		return stderrors.NewDataAccessError("dispatch", err)
	}
}
