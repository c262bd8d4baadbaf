package editor

import (
	"context"
	"time"
)

// DefaultFrameInterval is the wall-clock period between frames (60 Hz).
const DefaultFrameInterval = time.Second / 60

// Loop drives a Session's frames from a ticker. Each frame runs inside
// Session.Do with dt measured from the previous tick; physics clamps large
// gaps itself.
type Loop struct {
	Session  *Session
	Interval time.Duration
}

// Run ticks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := float32(now.Sub(last).Seconds())
			last = now
			l.Session.Do(func(s *Session) {
				s.Frame(ctx, dt)
			})
		}
	}
}
