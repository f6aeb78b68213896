package pano

import (
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Clock supplies frame timestamps to the animation scheduler.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// AnimationOptions controls how an angle or field-of-view change is applied.
type AnimationOptions struct {
	// Animate interpolates the change over Duration instead of applying it in
	// a single draw.
	Animate bool
	// Duration of the animation. Zero uses the scene default.
	Duration time.Duration
	// Ease shapes the interpolation. Nil is linear, which advances by
	// speed × elapsed time per frame.
	Ease ease.TweenFunc
	// OnDone runs once the change has been fully applied. It is not called
	// for an animation superseded by a newer one on the same axis.
	OnDone func()
}

func (o AnimationOptions) done() {
	if o.OnDone != nil {
		o.OnDone()
	}
}

// animationAxis selects one of the independent animation slots of a scene.
type animationAxis uint8

const (
	axisAngle       animationAxis = iota // pitch and yaw deltas
	axisFieldOfView                      // field-of-view value
	axisCount
)

// animation interpolates up to two totals over a fixed duration. A gween
// tween drives the normalized progress; each frame receives the share of the
// totals covered since the previous frame.
type animation struct {
	token    uint64
	tween    *gween.Tween
	last     time.Time
	totals   [2]float64
	applied  [2]float64
	progress float64
	onFrame  func(a, b float64)
	onDone   func()
}

// animator is a per-scene scheduler with one slot per axis. Starting an
// animation on a busy axis supersedes the running one: its remaining frames
// and completion callback are dropped.
type animator struct {
	clock     Clock
	slots     [axisCount]*animation
	nextToken uint64
}

// start registers an animation on axis and returns its token. The first frame
// is produced by the next tick.
func (a *animator) start(axis animationAxis, totalA, totalB float64, duration time.Duration,
	fn ease.TweenFunc, onFrame func(a, b float64), onDone func()) uint64 {
	if fn == nil {
		fn = ease.Linear
	}
	if duration <= 0 {
		duration = DefaultAnimationDuration
	}
	a.nextToken++
	a.slots[axis] = &animation{
		token:   a.nextToken,
		tween:   gween.New(0, 1, float32(duration.Seconds()), fn),
		last:    a.now(),
		totals:  [2]float64{totalA, totalB},
		onFrame: onFrame,
		onDone:  onDone,
	}
	return a.nextToken
}

// cancel drops the animation on axis without calling its completion callback.
func (a *animator) cancel(axis animationAxis) {
	a.slots[axis] = nil
}

// cancelAll drops every running animation.
func (a *animator) cancelAll() {
	for i := range a.slots {
		a.slots[i] = nil
	}
}

// active reports whether axis has an animation in flight.
func (a *animator) active(axis animationAxis) bool {
	return a.slots[axis] != nil
}

// busy reports whether any axis is animating.
func (a *animator) busy() bool {
	for _, s := range a.slots {
		if s != nil {
			return true
		}
	}
	return false
}

func (a *animator) now() time.Time {
	if a.clock == nil {
		return time.Now()
	}
	return a.clock.Now()
}

// tick advances every running animation to now. Callbacks may start or
// cancel animations; a slot whose token changed during its own callback is
// left to the newer animation.
func (a *animator) tick(now time.Time) {
	for axis := animationAxis(0); axis < axisCount; axis++ {
		anim := a.slots[axis]
		if anim == nil {
			continue
		}
		elapsed := now.Sub(anim.last)
		if elapsed < 0 {
			elapsed = 0
		}
		anim.last = now

		value, finished := anim.tween.Update(float32(elapsed.Seconds()))
		progress := float64(value)
		if finished {
			progress = 1
		}

		var da, db float64
		if finished {
			// The last frame lands exactly on the totals regardless of
			// float32 drift in the tween.
			da = anim.totals[0] - anim.applied[0]
			db = anim.totals[1] - anim.applied[1]
		} else {
			step := progress - anim.progress
			da = anim.totals[0] * step
			db = anim.totals[1] * step
		}
		anim.progress = progress
		anim.applied[0] += da
		anim.applied[1] += db

		if da != 0 || db != 0 || !finished {
			anim.onFrame(da, db)
		}
		if a.slots[axis] != anim {
			continue
		}
		if finished {
			a.slots[axis] = nil
			if anim.onDone != nil {
				anim.onDone()
			}
		}
	}
}
