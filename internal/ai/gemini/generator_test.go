package gemini

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"port-ops-bot/internal/models"
)

func TestBuildPrompt(t *testing.T) {
	summary := &models.MetricsSummary{
		From:            time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC),
		To:              time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		TotalContainers: 5000,
		DailyContainers: map[string]int64{"2024-01-15": 137},
	}

	prompt, err := buildPrompt("מה התפוקה", summary, []string{"רמפה 3 מיועדת למכולות קירור"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(prompt, "Contextual data (JSON):\n"))
	assert.True(t, strings.HasSuffix(prompt, "מה התפוקה"))
	assert.Contains(t, prompt, "Using only the context above")

	// The JSON block between header and question must parse.
	body := strings.TrimPrefix(prompt, "Contextual data (JSON):\n")
	jsonDoc := body[:strings.Index(body, "\n\n")]
	var parsed map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(jsonDoc), &parsed))
	assert.Contains(t, parsed, "metrics")
	assert.Contains(t, parsed, "reference")
}

func TestBuildPromptOmitsMissingContext(t *testing.T) {
	prompt, err := buildPrompt("שאלה", nil, nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "{}")
	assert.NotContains(t, prompt, "metrics")
	assert.NotContains(t, prompt, "reference")
}
