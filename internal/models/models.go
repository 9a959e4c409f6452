// Package models holds the domain types shared by every pipeline stage.
package models

import (
	"time"

	"port-ops-bot/internal/pipeline/dates"
)

// Intent is the closed set of question categories the classifier emits.
type Intent string

const (
	IntentDailyContainerCount Intent = "daily_container_count"
	IntentContainerCountRange Intent = "container_count_range"
	IntentVehicleCountRange   Intent = "vehicle_count_range"
	IntentContainerLocation   Intent = "container_location"
	IntentRampShiftStats      Intent = "ramp_shift_stats"
	IntentGenericAnalysis     Intent = "generic_analysis"
	IntentUnknown             Intent = "unknown"
)

// Shift is a work-shift identifier on a ramp.
type Shift string

const (
	ShiftMorning Shift = "morning"
	ShiftNoon    Shift = "noon"
	ShiftEvening Shift = "evening"
	ShiftNight   Shift = "night"
)

// InboundQuery is a single user question entering the pipeline.
type InboundQuery struct {
	MessageID  string
	ChatID     string
	Sender     string
	Text       string
	ReceivedAt time.Time
}

// ParameterSet carries the resolved, validated parameters for one intent.
// Only the fields the intent requires are populated.
type ParameterSet struct {
	Date        *dates.Expression
	Range       *dates.Expression
	ContainerID string
	RampID      string
	Shift       Shift
}

// ToMap renders the populated parameters for structured logging.
func (p ParameterSet) ToMap() map[string]interface{} {
	out := map[string]interface{}{}
	if p.Date != nil {
		out["date"] = p.Date.Date.Format("2006-01-02")
	}
	if p.Range != nil {
		out["start"] = p.Range.Start.Format("2006-01-02")
		out["end"] = p.Range.End.Format("2006-01-02")
	}
	if p.ContainerID != "" {
		out["container_id"] = p.ContainerID
	}
	if p.RampID != "" {
		out["ramp_id"] = p.RampID
	}
	if p.Shift != "" {
		out["shift"] = string(p.Shift)
	}
	return out
}

// ResultKind discriminates the QueryResult union.
type ResultKind int

const (
	ResultCount ResultKind = iota
	ResultLocation
	ResultRampStats
	ResultAnalysis
	ResultNotFound
)

// QueryResult is the outcome of a dispatched data query.
type QueryResult struct {
	Kind      ResultKind
	Count     int64
	Location  *ContainerLocation
	RampStats *RampStats
	Analysis  string
	// NotFoundSubject names what was looked up when Kind is ResultNotFound.
	NotFoundSubject string
}

// ContainerLocation is the latest known placement of a container.
type ContainerLocation struct {
	ContainerID string
	Zone        string
	Slot        string
	UpdatedAt   time.Time
}

// RampStats aggregates activity for one ramp on one date and shift.
type RampStats struct {
	RampID     string
	Date       time.Time
	Shift      Shift
	Containers int64
	Vehicles   int64
}

// MetricsSummary is the aggregate context handed to the generative fallback.
type MetricsSummary struct {
	From            time.Time        `json:"from"`
	To              time.Time        `json:"to"`
	TotalContainers int64            `json:"total_containers"`
	TotalVehicles   int64            `json:"total_vehicles"`
	DailyContainers map[string]int64 `json:"daily_containers"`
	DailyVehicles   map[string]int64 `json:"daily_vehicles"`
	Truncated       bool             `json:"truncated,omitempty"`
}

// FallbackState tracks how far the generative fallback got for one message.
type FallbackState string

const (
	FallbackNotAttempted FallbackState = "not_attempted"
	FallbackAttempting   FallbackState = "attempting"
	FallbackSucceeded    FallbackState = "succeeded"
	FallbackDegraded     FallbackState = "degraded"
)

// LogEntry is the audit record written once per processed message.
type LogEntry struct {
	ID            string
	MessageID     string
	ChatID        string
	QuestionText  string
	Intent        Intent
	Parameters    map[string]interface{}
	ResponseText  string
	ErrorCode     string
	FallbackState FallbackState
	DurationMS    int64
	CreatedAt     time.Time
}
