package domain

import (
	"sync"
	"time"
)

// DefaultCooldown is the minimum gap between two alarms of the same category.
const DefaultCooldown = 3 * time.Minute

// AlarmLimiter suppresses repeat alarms of the same category inside the
// cooldown window. Retreats never pass through it.
type AlarmLimiter struct {
	cooldown time.Duration

	mu          sync.RWMutex
	lastAlarmAt map[DangerCategory]time.Time
}

// NewAlarmLimiter creates a limiter. A non-positive cooldown falls back to
// DefaultCooldown.
func NewAlarmLimiter(cooldown time.Duration) *AlarmLimiter {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &AlarmLimiter{
		cooldown:    cooldown,
		lastAlarmAt: make(map[DangerCategory]time.Time, len(Categories)),
	}
}

// Cooldown returns the configured window.
func (l *AlarmLimiter) Cooldown() time.Duration {
	return l.cooldown
}

// ShouldEmit reports whether an alarm of this category may be sent at now.
// A category that never alarmed is always allowed.
func (l *AlarmLimiter) ShouldEmit(category DangerCategory, now time.Time) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	last, ok := l.lastAlarmAt[category]
	if !ok {
		return true
	}
	return now.Sub(last) >= l.cooldown
}

// Record marks an alarm of this category as sent at now.
func (l *AlarmLimiter) Record(category DangerCategory, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAlarmAt[category] = now
}

// LastAlarmAt returns the last recorded alarm time, zero if none.
func (l *AlarmLimiter) LastAlarmAt(category DangerCategory) time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastAlarmAt[category]
}
