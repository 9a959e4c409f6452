// Package fallback answers questions the rule-based pipeline could not,
// by handing the question plus an aggregate data context to a generative
// model. One attempt per message; a failed attempt degrades, it never
// retries.
package fallback

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
)

// Generator produces a free-form Hebrew answer from a question and its
// grounding context.
type Generator interface {
	Ask(ctx context.Context, question string, metrics *models.MetricsSummary, knowledge []string) (string, error)
}

// MetricsSource supplies aggregate operational metrics over a window.
type MetricsSource interface {
	MetricsSummary(ctx context.Context, from, to time.Time, maxRows int) (*models.MetricsSummary, error)
}

// KnowledgeSearcher retrieves reference text relevant to the question.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, max int) ([]string, error)
}

// Config holds fallback settings.
type Config struct {
	Timeout     time.Duration
	YearsBack   int
	MaxRows     int
	CacheTTL    time.Duration
	MaxSections int
}

// Outcome is the result of one fallback attempt.
type Outcome struct {
	State models.FallbackState
	Text  string
}

// Handler runs the generative fallback path.
type Handler struct {
	config    Config
	generator Generator
	metrics   MetricsSource
	knowledge KnowledgeSearcher
	cache     *redis.Client
	logger    logger.Logger
	now       func() time.Time
}

const metricsCacheKey = "fallback:metrics"

// NewHandler creates a fallback handler. knowledge and cache are optional;
// when nil the context is built without them.
func NewHandler(config Config, generator Generator, metrics MetricsSource, knowledge KnowledgeSearcher, cache *redis.Client, log logger.Logger) *Handler {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.YearsBack <= 0 {
		config.YearsBack = 5
	}
	if config.MaxRows <= 0 {
		config.MaxRows = 10000
	}
	if config.MaxSections <= 0 {
		config.MaxSections = 4
	}
	return &Handler{
		config:    config,
		generator: generator,
		metrics:   metrics,
		knowledge: knowledge,
		cache:     cache,
		logger:    log,
		now:       time.Now,
	}
}

// WithClock overrides the clock. Test hook.
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

// Answer makes exactly one generation attempt for the question. Context
// assembly is best-effort: missing metrics or knowledge degrade the context,
// not the attempt. A generator error or empty answer yields a degraded
// outcome with no text.
func (h *Handler) Answer(ctx context.Context, question string) Outcome {
	ctx, cancel := context.WithTimeout(ctx, h.config.Timeout)
	defer cancel()

	metrics := h.loadMetrics(ctx)
	knowledge := h.loadKnowledge(ctx, question)

	text, err := h.generator.Ask(ctx, question, metrics, knowledge)
	if err != nil {
		h.logger.Warn("fallback generation failed", map[string]interface{}{
			"error": err.Error(),
		})
		return Outcome{State: models.FallbackDegraded}
	}
	if text == "" {
		h.logger.Warn("fallback produced empty answer", nil)
		return Outcome{State: models.FallbackDegraded}
	}
	return Outcome{State: models.FallbackSucceeded, Text: text}
}

// loadMetrics serves the aggregate context from the cache when fresh,
// otherwise from the database, caching the result. Failures return nil.
func (h *Handler) loadMetrics(ctx context.Context) *models.MetricsSummary {
	if cached := h.cachedMetrics(ctx); cached != nil {
		return cached
	}

	now := h.now()
	from := now.AddDate(-h.config.YearsBack, 0, 0)
	summary, err := h.metrics.MetricsSummary(ctx, from, now, h.config.MaxRows)
	if err != nil {
		h.logger.Warn("fallback context metrics unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	h.storeMetrics(ctx, summary)
	return summary
}

func (h *Handler) cachedMetrics(ctx context.Context) *models.MetricsSummary {
	if h.cache == nil {
		return nil
	}
	raw, err := h.cache.Get(ctx, metricsCacheKey).Bytes()
	if err != nil {
		return nil
	}
	var summary models.MetricsSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return &summary
}

func (h *Handler) storeMetrics(ctx context.Context, summary *models.MetricsSummary) {
	if h.cache == nil || h.config.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := h.cache.Set(ctx, metricsCacheKey, raw, h.config.CacheTTL).Err(); err != nil {
		h.logger.Debug("fallback metrics cache write failed", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) loadKnowledge(ctx context.Context, question string) []string {
	if h.knowledge == nil {
		return nil
	}
	sections, err := h.knowledge.Search(ctx, question, h.config.MaxSections)
	if err != nil {
		h.logger.Debug("knowledge search unavailable", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	return sections
}
