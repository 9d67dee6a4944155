package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Cooldown is the "cool down until" gate shared by every request made with
// one credential. A 429 seen by any worker pauses all of them.
type Cooldown struct {
	mu    sync.Mutex
	until time.Time
	now   func() time.Time
}

// NewCooldown creates an open gate
func NewCooldown() *Cooldown {
	return &Cooldown{now: time.Now}
}

// CoolDown closes the gate until t. An earlier deadline never shortens a later one.
func (c *Cooldown) CoolDown(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.until) {
		c.until = t
	}
}

// Until returns the current deadline; zero when the gate has never closed
func (c *Cooldown) Until() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.until
}

// Remaining returns how long the gate stays closed
func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if d := c.until.Sub(c.now()); d > 0 {
		return d
	}
	return 0
}

// Wait blocks until the gate opens. The deadline is re-read after every
// sleep since another worker may have extended it meanwhile.
func (c *Cooldown) Wait(ctx context.Context) error {
	for {
		d := c.Remaining()
		if d <= 0 {
			return ctx.Err()
		}
		if err := sleep(ctx, d); err != nil {
			return err
		}
	}
}

// Reset opens the gate
func (c *Cooldown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.until = time.Time{}
}

// Chain waits on each non-nil limiter in order
type Chain []Limiter

// Wait implements Limiter
func (ch Chain) Wait(ctx context.Context) error {
	for _, l := range ch {
		if l == nil {
			continue
		}
		if err := l.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Reset implements Limiter
func (ch Chain) Reset() {
	for _, l := range ch {
		if l != nil {
			l.Reset()
		}
	}
}
