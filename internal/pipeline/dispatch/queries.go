package dispatch

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"port-ops-bot/internal/models"
)

const (
	containersByDaySQL = `SELECT COUNT(*) FROM container_events WHERE event_date = $1`

	containersBetweenSQL = `SELECT COUNT(*) FROM container_events WHERE event_date BETWEEN $1 AND $2`

	vehiclesBetweenSQL = `SELECT COUNT(*) FROM vehicle_events WHERE event_date BETWEEN $1 AND $2`

	containerLocationSQL = `SELECT container_id, zone, slot, updated_at
		FROM container_locations
		WHERE container_id = $1
		ORDER BY updated_at DESC
		LIMIT 1`

	rampShiftSQL = `SELECT COALESCE(SUM(containers), 0), COALESCE(SUM(vehicles), 0), COUNT(*)
		FROM ramp_operations
		WHERE ramp_id = $1 AND op_date = $2 AND shift = $3`

	dailyContainersSQL = `SELECT event_date, COUNT(*)
		FROM container_events
		WHERE event_date BETWEEN $1 AND $2
		GROUP BY event_date
		ORDER BY event_date`

	dailyVehiclesSQL = `SELECT event_date, COUNT(*)
		FROM vehicle_events
		WHERE event_date BETWEEN $1 AND $2
		GROUP BY event_date
		ORDER BY event_date`
)

func containersCountByDay(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error) {
	var count int64
	err := db.QueryRowContext(ctx, containersByDaySQL, params.Date.Date).Scan(&count)
	if err != nil {
		return nil, err
	}
	return &models.QueryResult{Kind: models.ResultCount, Count: count}, nil
}

func containersCountBetween(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error) {
	var count int64
	err := db.QueryRowContext(ctx, containersBetweenSQL, params.Range.Start, params.Range.End).Scan(&count)
	if err != nil {
		return nil, err
	}
	return &models.QueryResult{Kind: models.ResultCount, Count: count}, nil
}

func vehiclesCountBetween(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error) {
	var count int64
	err := db.QueryRowContext(ctx, vehiclesBetweenSQL, params.Range.Start, params.Range.End).Scan(&count)
	if err != nil {
		return nil, err
	}
	return &models.QueryResult{Kind: models.ResultCount, Count: count}, nil
}

func containerLocation(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error) {
	var loc models.ContainerLocation
	err := db.QueryRowContext(ctx, containerLocationSQL, params.ContainerID).
		Scan(&loc.ContainerID, &loc.Zone, &loc.Slot, &loc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.QueryResult{Kind: models.ResultNotFound, NotFoundSubject: params.ContainerID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &models.QueryResult{Kind: models.ResultLocation, Location: &loc}, nil
}

// rampShiftStats distinguishes a ramp/shift with zero recorded operations
// from one that never appears at all: the row count tells them apart, the
// sums do not.
func rampShiftStats(ctx context.Context, db *sql.DB, params models.ParameterSet) (*models.QueryResult, error) {
	var containers, vehicles, rows int64
	err := db.QueryRowContext(ctx, rampShiftSQL, params.RampID, params.Date.Date, string(params.Shift)).
		Scan(&containers, &vehicles, &rows)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return &models.QueryResult{Kind: models.ResultNotFound, NotFoundSubject: params.RampID}, nil
	}
	return &models.QueryResult{
		Kind: models.ResultRampStats,
		RampStats: &models.RampStats{
			RampID:     params.RampID,
			Date:       params.Date.Date,
			Shift:      params.Shift,
			Containers: containers,
			Vehicles:   vehicles,
		},
	}, nil
}

// MetricsSummary aggregates daily container and vehicle counts over the
// window for the generative fallback's context. Output is capped at maxRows
// days per series and flagged as truncated when the cap bites.
func (h *Handler) MetricsSummary(ctx context.Context, from, to time.Time, maxRows int) (*models.MetricsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, h.config.QueryTimeout)
	defer cancel()

	summary := &models.MetricsSummary{
		From:            from,
		To:              to,
		DailyContainers: map[string]int64{},
		DailyVehicles:   map[string]int64{},
	}

	total, truncated, err := h.dailySeries(ctx, dailyContainersSQL, from, to, maxRows, summary.DailyContainers)
	if err != nil {
		return nil, err
	}
	summary.TotalContainers = total
	summary.Truncated = summary.Truncated || truncated

	total, truncated, err = h.dailySeries(ctx, dailyVehiclesSQL, from, to, maxRows, summary.DailyVehicles)
	if err != nil {
		return nil, err
	}
	summary.TotalVehicles = total
	summary.Truncated = summary.Truncated || truncated

	return summary, nil
}

func (h *Handler) dailySeries(ctx context.Context, query string, from, to time.Time, maxRows int, out map[string]int64) (int64, bool, error) {
	rows, err := h.db.QueryContext(ctx, query, from, to)
	if err != nil {
		return 0, false, err
	}
	defer rows.Close()

	var total int64
	truncated := false
	for rows.Next() {
		var day time.Time
		var count int64
		if err := rows.Scan(&day, &count); err != nil {
			return 0, false, err
		}
		total += count
		if maxRows > 0 && len(out) >= maxRows {
			truncated = true
			continue
		}
		out[day.Format("2006-01-02")] = count
	}
	return total, truncated, rows.Err()
}
