// Package classify maps raw Hebrew question text onto the closed intent set
// using an ordered rule table of regular expressions with named capture
// groups. Matching is binary: a rule either matches or it does not.
package classify

import (
	"regexp"
	"sort"
	"strings"

	"port-ops-bot/internal/models"
)

// Slot names produced by the rule table.
const (
	SlotDate      = "date"
	SlotRange     = "range"
	SlotContainer = "container"
	SlotRamp      = "ramp"
	SlotShift     = "shift"
)

// Classification is the outcome of matching one message against the rules.
// Confidence is binary: 1 for a rule match, 0 for unmatched text.
type Classification struct {
	Intent     models.Intent
	Slots      map[string]string
	Confidence float64
}

// Rule binds one intent to a pattern. Lower Priority matches first, so range
// phrasings can outrank the single-day rules they would otherwise collide
// with.
type Rule struct {
	Intent   models.Intent
	Priority int
	Pattern  *regexp.Regexp
}

// Note: RE2 \b is ASCII-only and never fires next to Hebrew letters, so the
// patterns below rely on whitespace and anchors instead of word boundaries.
const (
	dateToken = `(?:\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}\s+ב?(?:ינואר|פברואר|מרץ|אפריל|מאי|יוני|יולי|אוגוסט|ספטמבר|אוקטובר|נובמבר|דצמבר)\s+\d{4}|היום|אתמול)`
	monthSpan = `(?:החודש(?:\s+האחרון)?|חודש\s+שעבר|ב?(?:ינואר|פברואר|מרץ|אפריל|מאי|יוני|יולי|אוגוסט|ספטמבר|אוקטובר|נובמבר|דצמבר)\s+\d{4})`
)

var defaultRules = []Rule{
	{
		Intent:   models.IntentContainerCountRange,
		Priority: 10,
		Pattern: regexp.MustCompile(
			`כמה\s+מכולות\s+(?:(?:נפרקו|טופלו|עברו)\s+)?(?P<range>(?:בין|מתאריך|מ-)\s*.+)$`),
	},
	{
		Intent:   models.IntentContainerCountRange,
		Priority: 11,
		Pattern: regexp.MustCompile(
			`כמה\s+מכולות\s+(?:(?:נפרקו|טופלו|עברו)\s+)?(?P<range>` + monthSpan + `)`),
	},
	{
		Intent:   models.IntentVehicleCountRange,
		Priority: 10,
		Pattern: regexp.MustCompile(
			`כמה\s+(?:רכבים|משאיות|כלי\s+רכב)\s+(?:(?:טופלו|נכנסו|עברו)\s+)?(?P<range>(?:בין|מתאריך|מ-)\s*.+)$`),
	},
	{
		Intent:   models.IntentDailyContainerCount,
		Priority: 20,
		Pattern: regexp.MustCompile(
			`כמה\s+מכולות\s+(?:(?:נפרקו|טופלו|עברו)\s+)?(?:ביום\s+|בתאריך\s+|ב-|ב)?(?P<date>` + dateToken + `)`),
	},
	{
		Intent:   models.IntentContainerLocation,
		Priority: 20,
		Pattern: regexp.MustCompile(
			`(?:איפה|היכן)\s+(?:נמצאת\s+)?(?:ה)?מכולה\s+(?P<container>[A-Za-z0-9]{4,11})`),
	},
	{
		Intent:   models.IntentContainerLocation,
		Priority: 21,
		Pattern: regexp.MustCompile(
			`מיקום\s+(?:של\s+)?(?:ה)?מכולה\s+(?P<container>[A-Za-z0-9]{4,11})`),
	},
	{
		// Explicit analysis request, e.g. "נתח את תפוקת המכולות בחודש האחרון".
		Intent:   models.IntentGenericAnalysis,
		Priority: 30,
		Pattern:  regexp.MustCompile(`(?:^|\s)נתח\s+`),
	},
	{
		Intent:   models.IntentRampShiftStats,
		Priority: 20,
		Pattern: regexp.MustCompile(
			`רמפה\s+(?P<ramp>[A-Za-z0-9]{1,8}).*?משמרת\s+(?P<shift>בוקר|צהריים|ערב|לילה)(?:.*?(?P<date>` + dateToken + `))?`),
	},
}

// Classifier matches messages against an ordered, immutable rule table.
type Classifier struct {
	rules []Rule
}

func New() *Classifier {
	return NewWithRules(defaultRules)
}

func NewWithRules(rules []Rule) *Classifier {
	sorted := make([]Rule, len(rules))
	copy(sorted, rules)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	return &Classifier{rules: sorted}
}

// Classify returns the first matching rule's intent with its extracted slots.
// Text matching no rule classifies as unknown with zero confidence; routing
// unknowns to the generative path is the pipeline's call, not the
// classifier's.
func (c *Classifier) Classify(text string) Classification {
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return Classification{Intent: models.IntentUnknown, Slots: map[string]string{}}
	}

	for _, rule := range c.rules {
		m := rule.Pattern.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		slots := map[string]string{}
		for i, name := range rule.Pattern.SubexpNames() {
			if name == "" || i >= len(m) || m[i] == "" {
				continue
			}
			slots[name] = strings.TrimSpace(m[i])
		}
		return Classification{Intent: rule.Intent, Slots: slots, Confidence: 1}
	}

	return Classification{Intent: models.IntentUnknown, Slots: map[string]string{}}
}
