package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "port-ops-bot/internal/common/errors"
	"port-ops-bot/internal/common/logger"
	"port-ops-bot/internal/models"
	"port-ops-bot/internal/pipeline/classify"
	"port-ops-bot/internal/pipeline/dates"
	"port-ops-bot/internal/pipeline/dispatch"
	"port-ops-bot/internal/pipeline/fallback"
	"port-ops-bot/internal/pipeline/resolve"
	"port-ops-bot/internal/pipeline/respond"
)

type fakeDispatcher struct {
	result    *models.QueryResult
	err       error
	gotIntent models.Intent
	gotParams models.ParameterSet
	calls     int
}

func (f *fakeDispatcher) Dispatch(_ context.Context, intent models.Intent, params models.ParameterSet) (*models.QueryResult, error) {
	f.calls++
	f.gotIntent = intent
	f.gotParams = params
	return f.result, f.err
}

type fakeFallback struct {
	outcome fallback.Outcome
	gotText string
	calls   int
}

func (f *fakeFallback) Answer(_ context.Context, question string) fallback.Outcome {
	f.calls++
	f.gotText = question
	return f.outcome
}

type fakeRecorder struct {
	entries []models.LogEntry
}

func (f *fakeRecorder) Record(entry models.LogEntry) {
	f.entries = append(f.entries, entry)
}

func fixedClock() time.Time {
	return time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)
}

func newPipeline(d Dispatcher, fb FallbackHandler, rec Recorder) *Pipeline {
	return New(
		classify.New(),
		resolve.New(fixedClock),
		d,
		fb,
		respond.New(),
		rec,
		logger.NewNoOpLogger(),
	).WithClock(fixedClock)
}

func inbound(text string) models.InboundQuery {
	return models.InboundQuery{
		MessageID:  "msg-1",
		ChatID:     "972501234567@c.us",
		Sender:     "דני",
		Text:       text,
		ReceivedAt: fixedClock(),
	}
}

func TestProcessDailyContainerCount(t *testing.T) {
	d := &fakeDispatcher{result: &models.QueryResult{Kind: models.ResultCount, Count: 137}}
	rec := &fakeRecorder{}
	p := newPipeline(d, nil, rec)

	got := p.Process(context.Background(), inbound("כמה מכולות נפרקו ב-15/01/2024"))

	assert.Equal(t, "ב-15/01/2024 נספרו 137 מכולות.", got)
	assert.Equal(t, models.IntentDailyContainerCount, d.gotIntent)
	require.NotNil(t, d.gotParams.Date)

	require.Len(t, rec.entries, 1)
	entry := rec.entries[0]
	assert.Equal(t, models.IntentDailyContainerCount, entry.Intent)
	assert.Equal(t, "msg-1", entry.MessageID)
	assert.Equal(t, got, entry.ResponseText)
	assert.Empty(t, entry.ErrorCode)
	assert.Equal(t, models.FallbackNotAttempted, entry.FallbackState)
	assert.Equal(t, "2024-01-15", entry.Parameters["date"])
	assert.NotEmpty(t, entry.ID)
}

func TestProcessVehicleRange(t *testing.T) {
	d := &fakeDispatcher{result: &models.QueryResult{Kind: models.ResultCount, Count: 312}}
	rec := &fakeRecorder{}
	p := newPipeline(d, nil, rec)

	got := p.Process(context.Background(), inbound("כמה רכבים טופלו בין 01/02/2024 ל-10/02/2024"))

	assert.Equal(t, "בין 01/02/2024 ל-10/02/2024 טופלו 312 רכבים.", got)
	assert.Equal(t, models.IntentVehicleCountRange, d.gotIntent)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, "2024-02-01", rec.entries[0].Parameters["start"])
	assert.Equal(t, "2024-02-10", rec.entries[0].Parameters["end"])
}

func TestProcessContainerNotFound(t *testing.T) {
	d := &fakeDispatcher{result: &models.QueryResult{Kind: models.ResultNotFound, NotFoundSubject: "ZZZZ9999999"}}
	rec := &fakeRecorder{}
	p := newPipeline(d, nil, rec)

	got := p.Process(context.Background(), inbound("איפה נמצאת מכולה ZZZZ9999999"))

	assert.Equal(t, "לא נמצאו נתונים עבור ZZZZ9999999.", got)
	require.Len(t, rec.entries, 1)
	// Not found is a rendered outcome, not a pipeline failure.
	assert.Empty(t, rec.entries[0].ErrorCode)
}

func TestProcessResolutionFailure(t *testing.T) {
	d := &fakeDispatcher{}
	rec := &fakeRecorder{}
	p := newPipeline(d, nil, rec)

	t.Run("incomplete range", func(t *testing.T) {
		got := p.Process(context.Background(), inbound("כמה מכולות נפרקו מתאריך 01/01/2024 עד"))
		assert.Contains(t, got, "חסר תאריך")
		assert.Zero(t, d.calls)
		entry := rec.entries[len(rec.entries)-1]
		assert.Equal(t, "INCOMPLETE_RANGE", entry.ErrorCode)
	})

	t.Run("ambiguous two digit year", func(t *testing.T) {
		got := p.Process(context.Background(), inbound("כמה מכולות נפרקו ב-15/01/24"))
		assert.Contains(t, got, "לא הצלחתי להבין את התאריך")
		entry := rec.entries[len(rec.entries)-1]
		assert.Equal(t, "NORMALIZATION_ERROR", entry.ErrorCode)
	})
}

func TestProcessDispatchFailure(t *testing.T) {
	rec := &fakeRecorder{}

	t.Run("data access error", func(t *testing.T) {
		d := &fakeDispatcher{err: fmt.Errorf("%w: connection refused", dispatch.ErrDataAccess)}
		p := newPipeline(d, nil, rec)

		got := p.Process(context.Background(), inbound("כמה מכולות נפרקו ב-15/01/2024"))
		assert.Contains(t, got, "תקלה זמנית")
		entry := rec.entries[len(rec.entries)-1]
		assert.Equal(t, "DATA_ACCESS_ERROR", entry.ErrorCode)
	})

	t.Run("timeout", func(t *testing.T) {
		d := &fakeDispatcher{err: fmt.Errorf("%w: after 5s", dispatch.ErrQueryTimeout)}
		p := newPipeline(d, nil, rec)

		p.Process(context.Background(), inbound("כמה מכולות נפרקו ב-15/01/2024"))
		entry := rec.entries[len(rec.entries)-1]
		assert.Equal(t, "QUERY_TIMEOUT", entry.ErrorCode)
	})
}

func TestProcessGenericAnalysis(t *testing.T) {
	t.Run("fallback succeeds", func(t *testing.T) {
		fb := &fakeFallback{outcome: fallback.Outcome{State: models.FallbackSucceeded, Text: "התפוקה הממוצעת היא 120 מכולות ביום."}}
		rec := &fakeRecorder{}
		p := newPipeline(&fakeDispatcher{}, fb, rec)

		got := p.Process(context.Background(), inbound("נתח את התפוקה הממוצעת ברבעון האחרון"))

		assert.Equal(t, "התפוקה הממוצעת היא 120 מכולות ביום.", got)
		assert.Equal(t, 1, fb.calls)
		assert.Equal(t, "נתח את התפוקה הממוצעת ברבעון האחרון", fb.gotText)
		require.Len(t, rec.entries, 1)
		assert.Equal(t, models.IntentGenericAnalysis, rec.entries[0].Intent)
		assert.Equal(t, models.FallbackSucceeded, rec.entries[0].FallbackState)
	})

	t.Run("fallback degrades", func(t *testing.T) {
		fb := &fakeFallback{outcome: fallback.Outcome{State: models.FallbackDegraded}}
		rec := &fakeRecorder{}
		p := newPipeline(&fakeDispatcher{}, fb, rec)

		got := p.Process(context.Background(), inbound("נתח את התפוקה הממוצעת ברבעון האחרון"))

		assert.Contains(t, got, "מצטער")
		require.Len(t, rec.entries, 1)
		assert.Equal(t, models.FallbackDegraded, rec.entries[0].FallbackState)
		assert.Equal(t, "FALLBACK_DEGRADED", rec.entries[0].ErrorCode)
	})

	t.Run("no fallback configured degrades immediately", func(t *testing.T) {
		rec := &fakeRecorder{}
		p := newPipeline(&fakeDispatcher{}, nil, rec)

		got := p.Process(context.Background(), inbound("נתח את התפוקה הממוצעת ברבעון האחרון"))
		assert.Contains(t, got, "מצטער")
		assert.Equal(t, models.FallbackDegraded, rec.entries[0].FallbackState)
	})
}

func TestProcessUnknown(t *testing.T) {
	// Unmatched text escalates to the generative path too, labeled Unknown.
	fb := &fakeFallback{outcome: fallback.Outcome{State: models.FallbackSucceeded, Text: "אני כאן לשאלות על תפעול הנמל."}}
	rec := &fakeRecorder{}
	p := newPipeline(&fakeDispatcher{}, fb, rec)

	got := p.Process(context.Background(), inbound("שלום, מה קורה?"))

	assert.Equal(t, "אני כאן לשאלות על תפעול הנמל.", got)
	assert.Equal(t, 1, fb.calls)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, models.IntentUnknown, rec.entries[0].Intent)
	assert.Equal(t, models.FallbackSucceeded, rec.entries[0].FallbackState)
}

func TestProcessExplicitAnalysisDegraded(t *testing.T) {
	fb := &fakeFallback{outcome: fallback.Outcome{State: models.FallbackDegraded}}
	rec := &fakeRecorder{}
	p := newPipeline(&fakeDispatcher{}, fb, rec)

	got := p.Process(context.Background(), inbound("נתח באמצעות גמיני את תפוקת המכולות בחודש האחרון"))

	assert.Equal(t, respond.New().Degraded(), got)
	require.Len(t, rec.entries, 1)
	assert.Equal(t, models.IntentGenericAnalysis, rec.entries[0].Intent)
	assert.Equal(t, models.FallbackDegraded, rec.entries[0].FallbackState)
	assert.Equal(t, "FALLBACK_DEGRADED", rec.entries[0].ErrorCode)
}

func TestProcessBareDailyQuestion(t *testing.T) {
	// "כמה מכולות היום?" carries no verb; the daily rule still matches and
	// the relative date resolves against the injected clock.
	d := &fakeDispatcher{result: &models.QueryResult{Kind: models.ResultCount, Count: 88}}
	rec := &fakeRecorder{}
	p := newPipeline(d, nil, rec)

	got := p.Process(context.Background(), inbound("כמה מכולות היום?"))

	assert.Equal(t, "ב-10/03/2024 נספרו 88 מכולות.", got)
	assert.Equal(t, models.IntentDailyContainerCount, d.gotIntent)
	assert.Equal(t, "2024-03-10", rec.entries[0].Parameters["date"])
}

func TestStandardizeStageErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		code      stderrors.ErrorCode
		retryable bool
	}{
		{name: "incomplete range", err: fmt.Errorf("%w: one endpoint", dates.ErrIncompleteRange), code: stderrors.ErrCodeIncompleteRange, retryable: false},
		{name: "malformed date", err: fmt.Errorf("%w: bad token", dates.ErrMalformed), code: stderrors.ErrCodeNormalizationFailed, retryable: false},
		{name: "missing parameter", err: fmt.Errorf("%w: date", resolve.ErrMissingParameter), code: stderrors.ErrCodeMissingParameter, retryable: false},
		{name: "query timeout", err: fmt.Errorf("%w: after 5s", dispatch.ErrQueryTimeout), code: stderrors.ErrCodeQueryTimeout, retryable: true},
		{name: "data access", err: fmt.Errorf("%w: connection refused", dispatch.ErrDataAccess), code: stderrors.ErrCodeDataAccessFailed, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			std := standardize(tt.err)
			assert.Equal(t, tt.code, std.Code)
			assert.Equal(t, tt.retryable, std.Retryable)
			assert.Contains(t, std.Details, tt.err.Error())
		})
	}
}

func TestProcessAlwaysRecordsExactlyOnce(t *testing.T) {
	texts := []string{
		"כמה מכולות נפרקו ב-15/01/2024",
		"כמה מכולות נפרקו ב-15/01/24",
		"מה הייתה התפוקה הממוצעת ברבעון האחרון",
		"שלום, מה קורה?",
		"תודה רבה",
	}

	d := &fakeDispatcher{result: &models.QueryResult{Kind: models.ResultCount, Count: 1}}
	fb := &fakeFallback{outcome: fallback.Outcome{State: models.FallbackDegraded}}

	for _, text := range texts {
		rec := &fakeRecorder{}
		p := newPipeline(d, fb, rec)
		p.Process(context.Background(), inbound(text))
		assert.Len(t, rec.entries, 1, "text %q", text)
	}
}
