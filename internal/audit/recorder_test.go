package audit

import (
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
)

func testEntry() models.LogEntry {
	return models.LogEntry{
		ID:            "e0b3c7f2-0000-4000-8000-000000000001",
		MessageID:     "msg-1",
		ChatID:        "972501234567@c.us",
		QuestionText:  "כמה מכולות נפרקו ב-15/01/2024",
		Intent:        models.IntentDailyContainerCount,
		Parameters:    map[string]interface{}{"date": "2024-01-15"},
		ResponseText:  "ב-15/01/2024 נספרו 137 מכולות.",
		FallbackState: models.FallbackNotAttempted,
		DurationMS:    42,
		CreatedAt:     time.Date(2024, time.January, 15, 8, 0, 0, 0, time.UTC),
	}
}

func TestRecordInserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry := testEntry()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO query_log")).
		WithArgs(entry.ID, entry.MessageID, entry.ChatID, entry.QuestionText,
			string(entry.Intent), []byte(`{"date":"2024-01-15"}`), entry.ResponseText,
			nil, string(entry.FallbackState), entry.DurationMS, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRecorder(db, time.Second, logger.NewNoOpLogger())
	r.Record(entry)
	r.Drain()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordWithErrorCode(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	entry := testEntry()
	entry.ErrorCode = "NORMALIZATION_ERROR"
	entry.Parameters = map[string]interface{}{}

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO query_log")).
		WithArgs(entry.ID, entry.MessageID, entry.ChatID, entry.QuestionText,
			string(entry.Intent), []byte(`{}`), entry.ResponseText,
			"NORMALIZATION_ERROR", string(entry.FallbackState), entry.DurationMS, entry.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := NewRecorder(db, time.Second, logger.NewNoOpLogger())
	r.Record(entry)
	r.Drain()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSwallowsWriteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO query_log")).
		WillReturnError(errors.New("disk full"))

	r := NewRecorder(db, time.Second, logger.NewNoOpLogger())
	// Must not panic or block the caller.
	r.Record(testEntry())
	r.Drain()
}
