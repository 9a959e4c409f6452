// Package respond renders query results and pipeline failures into the
// Hebrew message templates sent back to the user.
package respond

import (
	"errors"
	"fmt"
	"time"

	"port-ops-bot/internal/models"
	"port-ops-bot/internal/pipeline/dates"
	"port-ops-bot/internal/pipeline/dispatch"
	"port-ops-bot/internal/pipeline/resolve"
)

const (
	apologyText  = "מצטער, לא הצלחתי להבין את הבקשה. נסה לנסח מחדש או לשאול שאלה אחרת."
	degradedText = "מצטער, אין באפשרותי לענות על השאלה כרגע. נסה שוב מאוחר יותר או פנה למשרד התפעול לבדיקה ידנית."

	badDateText      = "לא הצלחתי להבין את התאריך בבקשה. נסה פורמט כמו 15/01/2024."
	partialRangeText = "חסר תאריך בטווח. ציין גם תאריך התחלה וגם תאריך סיום."
	missingParamText = "חסרים פרטים בבקשה. נסה לציין תאריך או מזהה מכולה."
	dataErrorText    = "אירעה תקלה זמנית בגישה לנתונים. נסה שוב בעוד מספר דקות."
)

var shiftNames = map[models.Shift]string{
	models.ShiftMorning: "בוקר",
	models.ShiftNoon:    "צהריים",
	models.ShiftEvening: "ערב",
	models.ShiftNight:   "לילה",
}

// Composer renders pipeline outcomes as Hebrew text.
type Composer struct{}

func New() *Composer {
	return &Composer{}
}

// Compose renders a successful query result for its intent.
func (c *Composer) Compose(intent models.Intent, params models.ParameterSet, result *models.QueryResult) string {
	if result == nil {
		return apologyText
	}
	if result.Kind == models.ResultNotFound {
		return fmt.Sprintf("לא נמצאו נתונים עבור %s.", result.NotFoundSubject)
	}

	switch intent {
	case models.IntentDailyContainerCount:
		return fmt.Sprintf("ב-%s נספרו %d מכולות.", formatDate(params.Date.Date), result.Count)
	case models.IntentContainerCountRange:
		return fmt.Sprintf("בין %s ל-%s נפרקו %d מכולות.",
			formatDate(params.Range.Start), formatDate(params.Range.End), result.Count)
	case models.IntentVehicleCountRange:
		return fmt.Sprintf("בין %s ל-%s טופלו %d רכבים.",
			formatDate(params.Range.Start), formatDate(params.Range.End), result.Count)
	case models.IntentContainerLocation:
		loc := result.Location
		return fmt.Sprintf("מכולה %s נמצאת באזור %s, משבצת %s (עדכון אחרון: %s).",
			loc.ContainerID, loc.Zone, loc.Slot, loc.UpdatedAt.Format("02/01/2006 15:04"))
	case models.IntentRampShiftStats:
		st := result.RampStats
		return fmt.Sprintf("ברמפה %s במשמרת %s בתאריך %s טופלו %d מכולות ו-%d רכבים.",
			st.RampID, shiftNames[st.Shift], formatDate(st.Date), st.Containers, st.Vehicles)
	default:
		return apologyText
	}
}

// ComposeError maps a pipeline error onto the user-facing Hebrew message for
// its category. Unrecognized errors get the generic apology.
func (c *Composer) ComposeError(err error) string {
	switch {
	case errors.Is(err, dates.ErrIncompleteRange):
		return partialRangeText
	case errors.Is(err, dates.ErrMalformed):
		return badDateText
	case errors.Is(err, resolve.ErrMissingParameter):
		return missingParamText
	case errors.Is(err, dispatch.ErrDataAccess), errors.Is(err, dispatch.ErrQueryTimeout):
		return dataErrorText
	default:
		return apologyText
	}
}

// Apology is the response for messages the pipeline cannot interpret at all.
func (c *Composer) Apology() string {
	return apologyText
}

// Degraded is the response when the generative fallback failed.
func (c *Composer) Degraded() string {
	return degradedText
}

func formatDate(d time.Time) string {
	return d.Format("02/01/2006")
}
