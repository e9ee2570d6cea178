package dialog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCooldown(t *testing.T) {
	now := time.Now()
	c := newCooldown(45*time.Second, func() time.Time { return now })

	require.False(t, c.Active())
	require.Zero(t, c.SecondsLeft())

	c.Start()
	require.True(t, c.Active())
	require.Equal(t, 45, c.SecondsLeft())

	now = now.Add(44 * time.Second)
	require.True(t, c.Active())
	require.Equal(t, 1, c.SecondsLeft())

	now = now.Add(2 * time.Second)
	require.False(t, c.Active())
	require.Zero(t, c.SecondsLeft())
}

func TestCooldownStop(t *testing.T) {
	now := time.Now()
	c := newCooldown(45*time.Second, func() time.Time { return now })

	c.Start()
	c.Stop()
	require.False(t, c.Active())
}

func TestCooldownRestart(t *testing.T) {
	now := time.Now()
	c := newCooldown(45*time.Second, func() time.Time { return now })

	c.Start()
	now = now.Add(30 * time.Second)
	c.Start()
	require.Equal(t, 45, c.SecondsLeft())
}
