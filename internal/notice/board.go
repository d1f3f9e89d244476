// Package notice holds short-lived success and error banners.
package notice

import (
	"sync"
	"time"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 5 * time.Second

type Kind string

const (
	Success Kind = "success"
	Error   Kind = "error"
)

// Notice is one visible banner.
type Notice struct {
	Kind    Kind
	Message string
	Expires time.Time
}

// Timer is the part of *time.Timer the board needs.
type Timer interface {
	Stop() bool
}

type slot struct {
	notice Notice
	gen    uint64
	timer  Timer
}

// Board keeps at most one notice per kind. Showing a notice stops the
// previous timer of that kind; a stale timer can never clear a newer notice.
type Board struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	afterFunc func(time.Duration, func()) Timer
	slots     map[Kind]*slot
	closed    bool
}

type Option func(*Board)

func WithTTL(ttl time.Duration) Option {
	return func(b *Board) {
		if ttl > 0 {
			b.ttl = ttl
		}
	}
}

// WithClock replaces time.Now and time.AfterFunc, for tests.
func WithClock(now func() time.Time, afterFunc func(time.Duration, func()) Timer) Option {
	return func(b *Board) {
		if now != nil {
			b.now = now
		}
		if afterFunc != nil {
			b.afterFunc = afterFunc
		}
	}
}

func NewBoard(opts ...Option) *Board {
	b := &Board{
		ttl: DefaultTTL,
		now: time.Now,
		afterFunc: func(d time.Duration, f func()) Timer {
			return time.AfterFunc(d, f)
		},
		slots: map[Kind]*slot{Success: {}, Error: {}},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) Success(msg string) Notice { return b.Show(Success, msg) }

func (b *Board) Error(msg string) Notice { return b.Show(Error, msg) }

// Show replaces the notice of kind with msg and restarts its expiry.
// An empty msg clears the slot.
func (b *Board) Show(kind Kind, msg string) Notice {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.slotFor(kind)
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
	if msg == "" || b.closed {
		s.notice = Notice{}
		return Notice{}
	}

	s.notice = Notice{Kind: kind, Message: msg, Expires: b.now().Add(b.ttl)}
	gen := s.gen
	s.timer = b.afterFunc(b.ttl, func() { b.expire(kind, gen) })
	return s.notice
}

// Current returns the visible notice of kind, if any.
func (b *Board) Current(kind Kind) (Notice, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slotFor(kind)
	if s.notice.Message == "" {
		return Notice{}, false
	}
	return s.notice, true
}

// Clear removes the notice of kind immediately.
func (b *Board) Clear(kind Kind) {
	b.Show(kind, "")
}

// Close stops all timers and clears every notice.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, s := range b.slots {
		if s.timer != nil {
			s.timer.Stop()
			s.timer = nil
		}
		s.gen++
		s.notice = Notice{}
	}
}

func (b *Board) expire(kind Kind, gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.slotFor(kind)
	if s.gen != gen {
		return
	}
	s.notice = Notice{}
	s.timer = nil
}

func (b *Board) slotFor(kind Kind) *slot {
	s, ok := b.slots[kind]
	if !ok {
		s = &slot{}
		b.slots[kind] = s
	}
	return s
}
