// Package physics advances the scene by one discrete frame: gravity, a floor at
// y=0, and pairwise axis-aligned box resolution.
package physics

import (
	"github.com/chewxy/math32"

	"github.com/hpungsan/blockcad/sdk"
)

const (
	// DefaultGravity is the downward acceleration in units per second squared.
	DefaultGravity float32 = 9.8
	// DefaultMaxStep caps the integrated frame time so a long frame cannot tunnel.
	DefaultMaxStep float32 = 1.0 / 60.0
)

// Settings are the physics toggles and constants for a session.
type Settings struct {
	Enabled bool
	Gravity float32
	MaxStep float32
}

// DefaultSettings returns physics disabled with the standard constants.
func DefaultSettings() Settings {
	return Settings{
		Gravity: DefaultGravity,
		MaxStep: DefaultMaxStep,
	}
}

// Result summarizes one Step.
type Result struct {
	// Integrated is the number of blocks that were awake at the start of their turn.
	Integrated int
	// Settled is the number of blocks that went to sleep during the step.
	Settled int
}

// Step integrates every visible, awake block once and resolves contacts against the
// floor and every other visible block. Blocks are updated in place; none are
// created or removed.
//
// A block is resolved against the others in slice order, so when several blocks
// overlap the last one it lands on wins. Step is a no-op when physics is disabled
// or dt is not positive.
func Step(blocks []sdk.Block, dt float32, s Settings) Result {
	var res Result
	if !s.Enabled || dt <= 0 {
		return res
	}
	if s.MaxStep > 0 && dt > s.MaxStep {
		dt = s.MaxStep
	}

	for i := range blocks {
		b := &blocks[i]
		if b.Sleeping || !b.Visible {
			continue
		}
		res.Integrated++

		b.Velocity.Y -= s.Gravity * dt
		b.Position.Y += b.Velocity.Y * dt

		if b.Position.Y-b.Size.Y/2 < 0 {
			b.Position.Y = b.Size.Y / 2
			b.Velocity.Y = 0
			b.Sleeping = true
		}

		for j := range blocks {
			if j == i {
				continue
			}
			other := &blocks[j]
			if !other.Visible || !Overlaps(*b, *other) {
				continue
			}
			if b.Position.Y > other.Position.Y {
				b.Position.Y = other.Position.Y + other.Size.Y/2 + b.Size.Y/2
				b.Velocity.Y = 0
				b.Sleeping = true
			}
		}

		if b.Sleeping {
			res.Settled++
		}
	}
	return res
}

// WakeAll clears every sleeping flag and zeroes velocities so the next Step
// integrates the whole scene again, including the baseplate.
func WakeAll(blocks []sdk.Block) {
	for i := range blocks {
		blocks[i].Sleeping = false
		blocks[i].Velocity = sdk.Vector3{}
	}
}

// Overlaps reports whether the boxes of a and b intersect on all three axes.
// Touching faces do not count.
func Overlaps(a, b sdk.Block) bool {
	return math32.Abs(a.Position.X-b.Position.X) < (a.Size.X+b.Size.X)/2 &&
		math32.Abs(a.Position.Y-b.Position.Y) < (a.Size.Y+b.Size.Y)/2 &&
		math32.Abs(a.Position.Z-b.Position.Z) < (a.Size.Z+b.Size.Z)/2
}

// Settled reports whether every visible block is asleep.
func Settled(blocks []sdk.Block) bool {
	for _, b := range blocks {
		if b.Visible && !b.Sleeping {
			return false
		}
	}
	return true
}
