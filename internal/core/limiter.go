package core

// limiter.go bounds how many imports run at once. Reconciliation of the
// same session from two concurrent imports can race on the select-or-insert
// path, so the default is a single slot.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrImportBusy is returned when no import slot frees up within the wait
// period.
var ErrImportBusy = errors.New("too many imports in progress, please try again later")

const (
	// DefaultMaxConcurrentImports serializes imports.
	DefaultMaxConcurrentImports = 1
	// DefaultImportWait is how long an import waits for a slot.
	DefaultImportWait = 30 * time.Second
)

// ImportLimiter is a counting semaphore over import runs.
//
// The slots channel carries the capacity; active mirrors its length behind a
// mutex so ActiveCount and Status can be read without touching the channel.
// Safe for concurrent use.
type ImportLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewImportLimiter allows maxConcurrent imports; callers wait up to maxWait.
func NewImportLimiter(maxConcurrent int, maxWait time.Duration) *ImportLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentImports
	}
	if maxWait <= 0 {
		maxWait = DefaultImportWait
	}
	return &ImportLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most the limiter's maxWait.
// It returns ErrImportBusy when the wait elapses first, or ctx.Err() when ctx
// ends first. Every successful Acquire must be paired with Release:
//
//	if err := limiter.Acquire(ctx); err != nil {
//		return err
//	}
//	defer limiter.Release()
func (l *ImportLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return ErrImportBusy
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *ImportLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return true
	default:
		return false
	}
}

// Release frees a slot taken by Acquire or TryAcquire. Calling it without a
// held slot blocks forever.
func (l *ImportLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.slots
}

// ActiveCount returns the number of running imports.
func (l *ImportLimiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no import is running or ctx ends.
// It polls every 100ms and does not stop new imports from starting; the
// server calls it during shutdown before closing the HTTP listener.
func (l *ImportLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

// Status reports current usage. Active and Available are read separately
// and may disagree briefly while a slot changes hands.
func (l *ImportLimiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
