// Package resolve turns the classifier's raw slot strings into validated,
// typed parameters for each intent.
package resolve

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"port-ops-bot/internal/models"
	"port-ops-bot/internal/pipeline/classify"
	"port-ops-bot/internal/pipeline/dates"
)

var ErrMissingParameter = errors.New("MISSING_PARAMETER")

var (
	containerIDRe = regexp.MustCompile(`^[A-Za-z0-9]{4,11}$`)
	rampIDRe      = regexp.MustCompile(`^[A-Za-z0-9]{1,8}$`)
)

var hebrewShifts = map[string]models.Shift{
	"בוקר":   models.ShiftMorning,
	"צהריים": models.ShiftNoon,
	"ערב":    models.ShiftEvening,
	"לילה":   models.ShiftNight,
}

// Clock supplies the current time so relative dates resolve deterministically
// under test.
type Clock func() time.Time

// Resolver validates and types slot values per intent.
type Resolver struct {
	now Clock
}

func New(now Clock) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

// Resolve builds the parameter set the intent requires. A missing required
// slot fails with ErrMissingParameter naming the slot; a present but
// unparseable slot surfaces the normalizer's error unchanged.
func (r *Resolver) Resolve(intent models.Intent, slots map[string]string) (models.ParameterSet, error) {
	switch intent {
	case models.IntentDailyContainerCount:
		return r.resolveDaily(slots)
	case models.IntentContainerCountRange, models.IntentVehicleCountRange:
		return r.resolveRange(slots)
	case models.IntentContainerLocation:
		return r.resolveLocation(slots)
	case models.IntentRampShiftStats:
		return r.resolveRampShift(slots)
	case models.IntentGenericAnalysis, models.IntentUnknown:
		return models.ParameterSet{}, nil
	default:
		return models.ParameterSet{}, fmt.Errorf("%w: no resolution rules for intent %q", ErrMissingParameter, intent)
	}
}

func (r *Resolver) resolveDaily(slots map[string]string) (models.ParameterSet, error) {
	span, ok := slots[classify.SlotDate]
	if !ok || strings.TrimSpace(span) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: date", ErrMissingParameter)
	}
	expr, err := dates.Normalize(span, r.now())
	if err != nil {
		return models.ParameterSet{}, err
	}
	if expr.Kind != dates.KindAbsolute {
		return models.ParameterSet{}, fmt.Errorf("%w: expected a single date, got a range in %q", dates.ErrMalformed, span)
	}
	return models.ParameterSet{Date: &expr}, nil
}

func (r *Resolver) resolveRange(slots map[string]string) (models.ParameterSet, error) {
	span, ok := slots[classify.SlotRange]
	if !ok || strings.TrimSpace(span) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: range", ErrMissingParameter)
	}
	expr, err := dates.Normalize(span, r.now())
	if err != nil {
		return models.ParameterSet{}, err
	}
	if expr.Kind == dates.KindAbsolute {
		// A single day is a degenerate one-day interval.
		expr, err = dates.NewRange(expr.Date, expr.Date)
		if err != nil {
			return models.ParameterSet{}, err
		}
	}
	return models.ParameterSet{Range: &expr}, nil
}

func (r *Resolver) resolveLocation(slots map[string]string) (models.ParameterSet, error) {
	id, ok := slots[classify.SlotContainer]
	if !ok || strings.TrimSpace(id) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: container_id", ErrMissingParameter)
	}
	id = strings.TrimSpace(id)
	if !containerIDRe.MatchString(id) {
		return models.ParameterSet{}, fmt.Errorf("%w: invalid container identifier %q", dates.ErrMalformed, id)
	}
	return models.ParameterSet{ContainerID: strings.ToUpper(id)}, nil
}

func (r *Resolver) resolveRampShift(slots map[string]string) (models.ParameterSet, error) {
	ramp, ok := slots[classify.SlotRamp]
	if !ok || strings.TrimSpace(ramp) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: ramp_id", ErrMissingParameter)
	}
	ramp = strings.ToUpper(strings.TrimSpace(ramp))
	if !rampIDRe.MatchString(ramp) {
		return models.ParameterSet{}, fmt.Errorf("%w: invalid ramp identifier %q", dates.ErrMalformed, ramp)
	}

	rawShift, ok := slots[classify.SlotShift]
	if !ok || strings.TrimSpace(rawShift) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: shift", ErrMissingParameter)
	}
	shift, ok := hebrewShifts[strings.TrimSpace(rawShift)]
	if !ok {
		return models.ParameterSet{}, fmt.Errorf("%w: unknown shift %q", dates.ErrMalformed, rawShift)
	}

	span, ok := slots[classify.SlotDate]
	if !ok || strings.TrimSpace(span) == "" {
		return models.ParameterSet{}, fmt.Errorf("%w: date", ErrMissingParameter)
	}
	expr, err := dates.Normalize(span, r.now())
	if err != nil {
		return models.ParameterSet{}, err
	}
	if expr.Kind != dates.KindAbsolute {
		return models.ParameterSet{}, fmt.Errorf("%w: ramp stats need a single date, got a range in %q", dates.ErrMalformed, span)
	}

	return models.ParameterSet{Date: &expr, RampID: ramp, Shift: shift}, nil
}
