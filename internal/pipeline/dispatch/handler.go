// Package dispatch routes resolved intents to their Postgres queries through
// a registry and enforces the per-query timeout.
package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
)

var (
	ErrDataAccess   = errors.New("DATA_ACCESS_ERROR")
	ErrQueryTimeout = errors.New("QUERY_TIMEOUT")
	ErrUnsupported  = errors.New("UNSUPPORTED_INTENT")
)

// Config holds dispatcher settings.
type Config struct {
	QueryTimeout time.Duration
}

type queryFunc func(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error)

// Handler executes data queries for classified intents.
type Handler struct {
	config  Config
	db      *sql.DB
	logger  logger.Logger
	queries map[models.Intent]queryFunc
}

// NewHandler creates a dispatcher over the given database handle.
func NewHandler(config Config, db *sql.DB, log logger.Logger) *Handler {
	if config.QueryTimeout <= 0 {
		config.QueryTimeout = 5 * time.Second
	}
	return &Handler{
		config: config,
		db:     db,
		logger: log,
		queries: map[models.Intent]queryFunc{
			models.IntentDailyContainerCount: containersCountByDay,
			models.IntentContainerCountRange: containersCountBetween,
			models.IntentVehicleCountRange:   vehiclesCountBetween,
			models.IntentContainerLocation:   containerLocation,
			models.IntentRampShiftStats:      rampShiftStats,
		},
	}
}

// Dispatch runs the query registered for the intent under the configured
// timeout. A missing record is a ResultNotFound result, not an error; errors
// are wrapped into the data-access taxonomy.
func (h *Handler) Dispatch(ctx context.Context, intent models.Intent, params models.ParameterSet) (*models.QueryResult, error) {
	fn, ok := h.queries[intent]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, intent)
	}

	ctx, cancel := context.WithTimeout(ctx, h.config.QueryTimeout)
	defer cancel()

	start := time.Now()
	result, err := fn(ctx, h.db, params)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			h.logger.Warn("query timed out", map[string]interface{}{
				"intent":     string(intent),
				"elapsed_ms": elapsed.Milliseconds(),
			})
			return nil, fmt.Errorf("%w: intent %s after %s", ErrQueryTimeout, intent, elapsed.Round(time.Millisecond))
		}
		h.logger.Error("query failed", map[string]interface{}{
			"intent": string(intent),
			"error":  err.Error(),
		})
		return nil, fmt.Errorf("%w: intent %s: %v", ErrDataAccess, intent, err)
	}

	h.logger.Debug("query completed", map[string]interface{}{
		"intent":     string(intent),
		"elapsed_ms": elapsed.Milliseconds(),
	})
	return result, nil
}
