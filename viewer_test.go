package vdbview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCooldownStateTransitions(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, cooldownInactive, cooldownState(now, time.Time{}))
	assert.Equal(t, cooldownHold, cooldownState(now, now.Add(time.Millisecond)))
	assert.Equal(t, cooldownExpired, cooldownState(now, now))
	assert.Equal(t, cooldownExpired, cooldownState(now, now.Add(-time.Second)))
}

func TestDamageBurstCollapsesToOneRecreation(t *testing.T) {
	v := &Viewer{}

	// A burst of damage events re-arms a single deadline.
	for i := 0; i < 5; i++ {
		v.NotifyDamage()
	}
	deadline := v.cooldownDeadline
	assert.False(t, deadline.IsZero())
	assert.WithinDuration(t, time.Now().Add(damageCooldown), deadline, 50*time.Millisecond)

	// Every tick inside the window holds; the first tick at or past the
	// deadline expires exactly once.
	assert.Equal(t, cooldownHold, cooldownState(deadline.Add(-damageCooldown/2), deadline))
	assert.Equal(t, cooldownExpired, cooldownState(deadline, deadline))

	// Expiry clears the deadline, so the next tick renders normally.
	v.cooldownDeadline = time.Time{}
	assert.Equal(t, cooldownInactive, cooldownState(deadline.Add(time.Second), v.cooldownDeadline))
}

func TestDamageExtendsTheCooldown(t *testing.T) {
	v := &Viewer{}
	v.NotifyDamage()
	first := v.cooldownDeadline

	time.Sleep(time.Millisecond)
	v.NotifyDamage()
	assert.False(t, v.cooldownDeadline.Before(first))
}
