// Package domain models air-raid announcements and the speech notifications
// derived from them.
//
// # Data Source
//
// Announcements are posts in a public broadcast channel run by the regional
// civil defence service. Posts are short Russian-language sentences, for
// example:
//
//	"Ракетная опасность! Всем в укрытие"   rocket alarm
//	"Отбой ракетной опасности"             rocket all-clear
//	"Беспилотная опасность"                drone alarm
//
// Message ids are assigned by the channel and increase monotonically, so the
// highest processed id is a sufficient watermark for "what has been seen".
//
// # Classification
//
// A batch of new posts is folded into one [Classification]:
//
//	Alarm:    any post contains "опасность" (danger) or "в укрытие" (to shelter)
//	Retreat:  any post contains "отбой" (all-clear)
//	Category: adjective forms, nominative for alarms and genitive for all-clears
//	  rocket   "ракетная"    / "ракетной"
//	  aviation "авиационная" / "авиационной"
//	  drone    "беспилотная" / "беспилотной"
//
// Matching is case-insensitive substring search. When posts in one batch name
// different categories, the later post wins. Note that the all-clear phrase
// "отбой ... опасности" does not contain "опасность", so an all-clear post on
// its own never raises Alarm.
//
// # Speech Templates
//
// The downstream endpoint is a smart-speaker skill that speaks plain text and
// understands two inline markers:
//
//	<speaker audio="..."> plays a sound effect
//	sil<[1500]>           inserts a 1.5 s pause
//
// Each payload repeats its phrase three times, every phrase followed by three
// ping sounds, with a pause between repetitions. See [Render].
//
// # Repeat Suppression
//
// The channel often reposts the same alarm several times within a minute.
// [AlarmLimiter] keeps the last alarm time per category and drops alarms of
// that category inside the cooldown window. All-clears are always delivered.
package domain
