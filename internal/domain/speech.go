package domain

import (
	"fmt"
	"strings"
)

// TemplateKind selects between the alarm and the all-clear speech template.
type TemplateKind string

const (
	TemplateAlarm   TemplateKind = "alarm"
	TemplateRetreat TemplateKind = "retreat"
)

// NotificationPayload is the text frame sent to the speech endpoint. The
// speaker and sil markers are interpreted downstream and passed through as-is.
type NotificationPayload string

const (
	audioCue    = `<speaker audio="alice-sounds-game-ping-1.opus">`
	pauseMarker = "sil<[1500]>"
	cuesPerLine = 3
	repetitions = 3
	alarmLine   = "%s опасность"
	retreatLine = "Отбой %s опасности"
)

// phrases holds the category adjective for each template: nominative for the
// alarm line, genitive for the retreat line.
var phrases = map[DangerCategory]struct {
	alarm   string
	retreat string
}{
	CategoryUnknown:  {alarm: "Неизвестная", retreat: "неизвестной"},
	CategoryRocket:   {alarm: "Ракетная", retreat: "ракетной"},
	CategoryAviation: {alarm: "Авиационная", retreat: "авиационной"},
	CategoryDrone:    {alarm: "Беспилотная", retreat: "беспилотной"},
}

// Render builds the payload for a template and category. Unrecognized
// categories render with the unknown phrase.
func Render(kind TemplateKind, category DangerCategory) NotificationPayload {
	p, ok := phrases[category]
	if !ok {
		p = phrases[CategoryUnknown]
	}

	var line string
	if kind == TemplateRetreat {
		line = fmt.Sprintf(retreatLine, p.retreat)
	} else {
		line = fmt.Sprintf(alarmLine, p.alarm)
	}
	line += strings.Repeat(audioCue, cuesPerLine)

	lines := make([]string, repetitions)
	for i := range lines {
		lines[i] = line
	}
	return NotificationPayload(strings.Join(lines, pauseMarker))
}
