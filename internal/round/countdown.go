package round

import (
	"context"
	"sync"
	"time"
)

// Countdown counts whole seconds down from a total. It never goes below
// zero and stops by itself when it gets there.
//
// With a positive interval, Start runs a ticker goroutine that calls Tick;
// with a zero interval the caller drives Tick directly.
type Countdown struct {
	mu       sync.Mutex
	total    int
	left     int
	running  bool
	interval time.Duration
	cancel   context.CancelFunc
}

func NewCountdown(total int, interval time.Duration) *Countdown {
	return &Countdown{total: total, left: total, interval: interval}
}

// Start resets the countdown to its total and starts it. Any previous
// ticker is cancelled first.
func (c *Countdown) Start(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.left = c.total
	c.running = c.total > 0

	if c.interval <= 0 || !c.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(ctx)
}

func (c *Countdown) run(ctx context.Context) {
	t := time.NewTicker(c.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if !c.Tick() {
				return
			}
		}
	}
}

// Tick decrements the remaining time by one unit. It reports whether the
// countdown is still running afterwards.
func (c *Countdown) Tick() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return false
	}
	if c.left > 0 {
		c.left--
	}
	if c.left == 0 {
		c.running = false
	}
	return c.running
}

// Stop freezes the remaining time.
func (c *Countdown) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *Countdown) stopLocked() {
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *Countdown) Left() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

// Elapsed is the time used so far: total minus what is left.
func (c *Countdown) Elapsed() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.total - c.left
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}
