// Package audit persists one structured record per processed message. Writes
// are asynchronous and never fail the reply path: a lost audit row is logged
// and counted, nothing more.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	stderrors "port-ops-bot/internal/common/errors"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/common/metrics"
	"port-ops-bot/internal/models"
)

const insertLogSQL = `INSERT INTO query_log
	(id, message_id, chat_id, question_text, intent, parameters, response_text, error_code, fallback_state, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

// Recorder writes audit entries to Postgres.
type Recorder struct {
	db      *sql.DB
	logger  logger.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewRecorder(db *sql.DB, timeout time.Duration, log logger.Logger) *Recorder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{db: db, timeout: timeout, logger: log}
}

// Record queues the entry for insertion and returns immediately. The write
// runs under its own deadline, detached from the message's context.
func (r *Recorder) Record(entry models.LogEntry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.write(entry)
	}()
}

// Drain blocks until every queued write finished. Called on shutdown and in
// tests.
func (r *Recorder) Drain() {
	r.wg.Wait()
}

func (r *Recorder) write(entry models.LogEntry) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	params, err := json.Marshal(entry.Parameters)
	if err != nil {
		params = []byte("{}")
	}

	_, err = r.db.ExecContext(ctx, insertLogSQL,
		entry.ID,
		entry.MessageID,
		entry.ChatID,
		entry.QuestionText,
		string(entry.Intent),
		params,
		entry.ResponseText,
		nullable(entry.ErrorCode),
		string(entry.FallbackState),
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		std := stderrors.NewLogWriteFailedError(err)
		metrics.PipelineFailures.WithLabelValues("audit", string(std.Code)).Inc()
		r.logger.Error("audit write failed", map[string]interface{}{
			"entry_id":   entry.ID,
			"message_id": entry.MessageID,
			"retryable":  std.Retryable,
			"error":      std.Error(),
			"details":    std.Details,
		})
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
