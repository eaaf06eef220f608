package domain

import "strings"

// DangerCategory is the kind of threat announced by the channel.
type DangerCategory string

const (
	CategoryUnknown  DangerCategory = "unknown"
	CategoryRocket   DangerCategory = "rocket"
	CategoryAviation DangerCategory = "aviation"
	CategoryDrone    DangerCategory = "drone"
)

// Categories lists every category, unknown first.
var Categories = []DangerCategory{CategoryUnknown, CategoryRocket, CategoryAviation, CategoryDrone}

var (
	// alarmKeywords announce a threat: "danger" and "to shelter".
	alarmKeywords = []string{"опасность", "в укрытие"}

	// retreatKeywords announce the all-clear.
	retreatKeywords = []string{"отбой"}

	// categoryKeywords holds the nominative ("... опасность") and genitive
	// ("отбой ... опасности") forms of each category adjective. Order matters:
	// a later entry overrides an earlier one within the same message.
	categoryKeywords = []struct {
		category DangerCategory
		forms    []string
	}{
		{CategoryRocket, []string{"ракетная", "ракетной"}},
		{CategoryAviation, []string{"авиационная", "авиационной"}},
		{CategoryDrone, []string{"беспилотная", "беспилотной"}},
	}
)

// Classification is the signal derived from one batch of messages.
type Classification struct {
	Alarm    bool
	Retreat  bool
	Category DangerCategory
}

// Kind picks the template to send. Retreat takes precedence when both signals
// are present; ok is false when the batch carries neither.
func (c Classification) Kind() (kind TemplateKind, ok bool) {
	switch {
	case c.Retreat:
		return TemplateRetreat, true
	case c.Alarm:
		return TemplateAlarm, true
	default:
		return "", false
	}
}

// Classify folds a batch of messages, in processing order, into a single
// Classification. Alarm and Retreat are sticky once any message sets them.
// Category is last-match-wins: a category keyword in a later message replaces
// one found in an earlier message.
func Classify(messages []Message) Classification {
	result := Classification{Category: CategoryUnknown}
	for _, m := range messages {
		result = classifyOne(result, m.Text)
	}
	return result
}

func classifyOne(acc Classification, text string) Classification {
	text = strings.ToLower(text)

	if containsAny(text, alarmKeywords) {
		acc.Alarm = true
	}
	if containsAny(text, retreatKeywords) {
		acc.Retreat = true
	}
	for _, ck := range categoryKeywords {
		if containsAny(text, ck.forms) {
			acc.Category = ck.category
		}
	}
	return acc
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
