package client

import (
	"context"
	"sync"
	"time"
)

// DefaultAutosaveInterval is the idle time after the last edit before a save
// fires.
const DefaultAutosaveInterval = 2 * time.Second

// Saver is the piece of Client the Autosaver needs. Client satisfies it.
type Saver interface {
	SaveNote(ctx context.Context, req SaveRequest) (*SaveResult, error)
}

// AutosaverConfig configures an Autosaver.
type AutosaverConfig struct {
	// Interval is the idle debounce window. Zero means
	// DefaultAutosaveInterval.
	Interval time.Duration
	// Fallback, when set, retains content locally if the server save fails.
	Fallback *FallbackStore
	// SaveTimeout bounds one save attempt. Zero means 10 seconds.
	SaveTimeout time.Duration
	// OnSave, when set, observes every save attempt's outcome.
	OnSave func(key string, err error)
}

// Autosaver debounces edits into server saves. It is a two-state machine:
// clean until an Update arrives, dirty until the idle window elapses and the
// save fires. Edits during an in-flight save do not cancel it; they schedule
// the next one, so the latest content always wins.
type Autosaver struct {
	saver Saver
	cfg   AutosaverConfig

	mu      sync.Mutex
	pending *SaveRequest
	timer   *time.Timer
	closed  bool

	wg sync.WaitGroup
}

// NewAutosaver creates an Autosaver that saves through the given Saver.
func NewAutosaver(saver Saver, cfg AutosaverConfig) *Autosaver {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultAutosaveInterval
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = 10 * time.Second
	}
	return &Autosaver{saver: saver, cfg: cfg}
}

// Update records the latest editor state and restarts the idle timer. Only
// the newest state is kept; intermediate edits inside the window are
// coalesced.
func (a *Autosaver) Update(req SaveRequest) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.pending = &req
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.cfg.Interval, a.fire)
}

// Flush saves any pending edit immediately instead of waiting out the idle
// window.
func (a *Autosaver) Flush() {
	a.mu.Lock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()
	a.fire()
}

// Close stops the timer and waits for an in-flight save to finish. Pending
// edits that never reached their idle window are dropped; callers who want
// them saved call Flush first.
func (a *Autosaver) Close() {
	a.mu.Lock()
	a.closed = true
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.pending = nil
	a.mu.Unlock()

	a.wg.Wait()
}

func (a *Autosaver) fire() {
	a.mu.Lock()
	req := a.pending
	a.pending = nil
	if req == nil {
		a.mu.Unlock()
		return
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		a.save(*req)
	}()
}

func (a *Autosaver) save(req SaveRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.SaveTimeout)
	defer cancel()

	_, err := a.saver.SaveNote(ctx, req)
	if err != nil && a.cfg.Fallback != nil {
		// Retain locally and go back to clean; the next edit retries
		if fbErr := a.cfg.Fallback.Put(req.Key, req.Pad); fbErr == nil {
			_ = a.cfg.Fallback.SetCurrent(req.Key, req.Pad)
		}
	}
	if err == nil && a.cfg.Fallback != nil {
		_ = a.cfg.Fallback.Delete(req.Key)
	}

	if a.cfg.OnSave != nil {
		a.cfg.OnSave(req.Key, err)
	}
}
