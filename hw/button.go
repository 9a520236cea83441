package hw

import (
	"sync"
	"time"
)

type Gesture int

const (
	GestureClick Gesture = iota + 1
	// Click, then press and hold past the hold threshold.
	GesturePair
	// Double click, then press and hold. Toggles the access point.
	GestureHold
	// Press and hold with no preceding click.
	GestureLongPress
)

func (g Gesture) String() string {
	switch g {
	case GestureClick:
		return "click"
	case GesturePair:
		return "pair"
	case GestureHold:
		return "hold"
	case GestureLongPress:
		return "long-press"
	default:
		return "unknown"
	}
}

type ButtonConfig struct {
	ClickMax          time.Duration
	DoubleClickWindow time.Duration
	HoldThreshold     time.Duration
}

func DefaultButtonConfig() ButtonConfig {
	return ButtonConfig{
		ClickMax:          300 * time.Millisecond,
		DoubleClickWindow: 500 * time.Millisecond,
		HoldThreshold:     3 * time.Second,
	}
}

// Button turns raw press and release edges into gestures. A hold gesture is
// emitted while the button is still down, once the threshold passes.
type Button struct {
	cfg ButtonConfig
	out chan Gesture
	now func() time.Time

	mu        sync.Mutex
	down      bool
	held      bool
	downAt    time.Time
	lastClick time.Time
	clicks    int
	seq       uint64
	timer     *time.Timer
}

func NewButton(cfg ButtonConfig) *Button {
	return &Button{cfg: cfg, out: make(chan Gesture, 8), now: time.Now}
}

func (b *Button) Gestures() <-chan Gesture {
	return b.out
}

func (b *Button) Press() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return
	}
	now := b.now()
	b.down = true
	b.held = false
	b.downAt = now

	clicks := 0
	if now.Sub(b.lastClick) <= b.cfg.DoubleClickWindow {
		clicks = b.clicks
	}
	b.seq++
	seq := b.seq
	b.timer = time.AfterFunc(b.cfg.HoldThreshold, func() { b.fireHold(seq, clicks) })
}

func (b *Button) fireHold(seq uint64, clicks int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.down || b.seq != seq {
		return
	}
	b.held = true
	b.clicks = 0
	switch {
	case clicks >= 2:
		b.emit(GestureHold)
	case clicks == 1:
		b.emit(GesturePair)
	default:
		b.emit(GestureLongPress)
	}
}

func (b *Button) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.down {
		return
	}
	b.down = false
	if b.timer != nil {
		b.timer.Stop()
	}
	if b.held {
		b.held = false
		return
	}

	now := b.now()
	if now.Sub(b.downAt) > b.cfg.ClickMax {
		b.clicks = 0
		return
	}
	if now.Sub(b.lastClick) <= b.cfg.DoubleClickWindow {
		b.clicks++
	} else {
		b.clicks = 1
	}
	b.lastClick = now
	b.emit(GestureClick)
}

func (b *Button) emit(g Gesture) {
	select {
	case b.out <- g:
	default:
	}
}
