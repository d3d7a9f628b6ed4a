// Package autoscroll models the live incident list viewport: it scrolls on
// its own while the feed is live and hands control to the user for a quiet
// period after every interaction. Time is always passed in by the caller.
package autoscroll

import (
	"sync"
	"time"
)

type State string

const (
	AutoScrolling  State = "AUTO_SCROLLING"
	UserControlled State = "USER_CONTROLLED"
)

const (
	DefaultQuietPeriod = 1500 * time.Millisecond

	// DefaultRate is in pixels per millisecond.
	DefaultRate = 0.03
)

type Options struct {
	Rate           float64
	QuietPeriod    time.Duration
	ContentHeight  float64
	ViewportHeight float64
}

type Viewport struct {
	mu sync.Mutex

	rate           float64
	quiet          time.Duration
	contentHeight  float64
	viewportHeight float64

	offset          float64
	live            bool
	lastInteraction time.Time
	interacted      bool
	lastTick        time.Time
}

func New(opts Options) *Viewport {
	if opts.Rate <= 0 {
		opts.Rate = DefaultRate
	}

	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}

	return &Viewport{
		rate:           opts.Rate,
		quiet:          opts.QuietPeriod,
		contentHeight:  opts.ContentHeight,
		viewportHeight: opts.ViewportHeight,
		live:           true,
	}
}

// State reports the state at now. USER_CONTROLLED lapses back to
// AUTO_SCROLLING on its own once the quiet period has passed.
func (v *Viewport) State(now time.Time) State {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.stateLocked(now)
}

func (v *Viewport) stateLocked(now time.Time) State {
	if v.interacted && now.Sub(v.lastInteraction) < v.quiet {
		return UserControlled
	}

	return AutoScrolling
}

// Interact records a wheel, mouse or touch event at now.
func (v *Viewport) Interact(now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.interacted = true
	v.lastInteraction = now
}

// ScrollTo moves the viewport as the user did, which also counts as an
// interaction.
func (v *Viewport) ScrollTo(offset float64, now time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.offset = v.clampLocked(offset)
	v.interacted = true
	v.lastInteraction = now
}

// SetLive pins the viewport when false.
func (v *Viewport) SetLive(live bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.live = live
}

// Resize updates the content and viewport heights, e.g. when the list grows.
func (v *Viewport) Resize(contentHeight, viewportHeight float64) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.contentHeight = contentHeight
	v.viewportHeight = viewportHeight
	v.offset = v.clampLocked(v.offset)
}

// Tick advances the offset by rate times the time since the previous tick
// while auto scrolling, wrapping to the top at the bottom of the content.
// It returns the offset after the tick.
func (v *Viewport) Tick(now time.Time) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	last := v.lastTick
	v.lastTick = now

	if last.IsZero() || !now.After(last) {
		return v.offset
	}

	if !v.live || v.stateLocked(now) != AutoScrolling {
		return v.offset
	}

	maxOffset := v.contentHeight - v.viewportHeight

	if maxOffset <= 0 {
		v.offset = 0
		return v.offset
	}

	elapsed := float64(now.Sub(last)) / float64(time.Millisecond)

	v.offset += v.rate * elapsed

	if v.offset >= maxOffset {
		v.offset = 0
	}

	return v.offset
}

func (v *Viewport) Offset() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	return v.offset
}

func (v *Viewport) clampLocked(offset float64) float64 {
	maxOffset := v.contentHeight - v.viewportHeight

	if offset < 0 || maxOffset <= 0 {
		return 0
	}

	if offset > maxOffset {
		return maxOffset
	}

	return offset
}
