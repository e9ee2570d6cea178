package dialog

import "time"

// ResendCooldown is how long the resend action stays disabled after every
// send or resend.
const ResendCooldown = 45 * time.Second

// cooldown is a deadline-based countdown. It is deliberately ephemeral: it is
// never persisted, since a countdown is meaningless after a session resume
// long after expiry.
type cooldown struct {
	deadline time.Time
	duration time.Duration
	nowTime  func() time.Time
}

func newCooldown(duration time.Duration, now func() time.Time) cooldown {
	return cooldown{duration: duration, nowTime: now}
}

func (c *cooldown) Start() {
	c.deadline = c.nowTime().Add(c.duration)
}

func (c *cooldown) Stop() {
	c.deadline = time.Time{}
}

func (c *cooldown) Active() bool {
	return c.nowTime().Before(c.deadline)
}

// SecondsLeft rounds up so the countdown only shows zero once resend is
// actually enabled.
func (c *cooldown) SecondsLeft() int {
	remaining := c.deadline.Sub(c.nowTime())
	if remaining <= 0 {
		return 0
	}
	return int((remaining + time.Second - 1) / time.Second)
}
