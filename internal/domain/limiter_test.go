package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestAlarmLimiter_FirstAlarmAllowed(t *testing.T) {
	l := NewAlarmLimiter(DefaultCooldown)
	for _, c := range Categories {
		assert.True(t, l.ShouldEmit(c, time.Now()), "category %s", c)
		assert.True(t, l.LastAlarmAt(c).IsZero())
	}
}

func TestAlarmLimiter_CooldownWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC))
	l := NewAlarmLimiter(3 * time.Minute)

	l.Record(CategoryRocket, clock.Now())

	clock.Advance(2*time.Minute + 59*time.Second)
	assert.False(t, l.ShouldEmit(CategoryRocket, clock.Now()), "inside window")

	clock.Advance(time.Second)
	assert.True(t, l.ShouldEmit(CategoryRocket, clock.Now()), "exactly at window edge")

	clock.Advance(time.Hour)
	assert.True(t, l.ShouldEmit(CategoryRocket, clock.Now()), "well past window")
}

func TestAlarmLimiter_CategoriesIndependent(t *testing.T) {
	now := time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)
	l := NewAlarmLimiter(3 * time.Minute)

	l.Record(CategoryRocket, now)

	assert.False(t, l.ShouldEmit(CategoryRocket, now.Add(time.Minute)))
	assert.True(t, l.ShouldEmit(CategoryDrone, now.Add(time.Minute)))
	assert.True(t, l.ShouldEmit(CategoryAviation, now.Add(time.Minute)))
	assert.True(t, l.ShouldEmit(CategoryUnknown, now.Add(time.Minute)))
}

func TestAlarmLimiter_RecordResetsWindow(t *testing.T) {
	now := time.Date(2024, time.October, 1, 12, 0, 0, 0, time.UTC)
	l := NewAlarmLimiter(3 * time.Minute)

	l.Record(CategoryDrone, now)
	l.Record(CategoryDrone, now.Add(4*time.Minute))

	assert.Equal(t, now.Add(4*time.Minute), l.LastAlarmAt(CategoryDrone))
	assert.False(t, l.ShouldEmit(CategoryDrone, now.Add(5*time.Minute)))
}

func TestNewAlarmLimiter_DefaultCooldown(t *testing.T) {
	assert.Equal(t, DefaultCooldown, NewAlarmLimiter(0).Cooldown())
	assert.Equal(t, DefaultCooldown, NewAlarmLimiter(-time.Second).Cooldown())
	assert.Equal(t, time.Minute, NewAlarmLimiter(time.Minute).Cooldown())
}
