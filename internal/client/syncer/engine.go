package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/productkeeper/internal/logging"
)

// Runner performs a single reconciliation pass.
type Runner interface {
	Run(ctx context.Context, opts Options) (Result, error)
}

type outcome struct {
	res Result
	err error
}

// Engine serializes passes: at most one runs at a time. A trigger arriving
// while a pass is running marks the engine dirty, the running loop performs
// one more pass, and every caller that joined receives the merged result.
//
// Passes run under a context owned by the engine, so a caller that gives up
// waiting does not abort a pass other callers joined. Stop cancels it.
type Engine struct {
	runner   Runner
	debounce time.Duration
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	running  bool
	dirty    bool
	retry    bool
	waiters  []chan outcome
	timer    *time.Timer
	gen      uint64
	stopped  bool
	onResult []func(Result, error)
}

func NewEngine(runner Runner, debounce time.Duration, logger logging.Logger) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		runner:   runner,
		debounce: debounce,
		logger:   logger.With("module", "sync-engine"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnResult registers fn to observe the outcome of every completed loop.
func (e *Engine) OnResult(fn func(Result, error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onResult = append(e.onResult, fn)
}

// Running reports whether a pass is in flight.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Trigger runs a pass, or joins the one in flight, and waits for the result.
// When ctx ends first Trigger returns ctx.Err() and the pass carries on.
func (e *Engine) Trigger(ctx context.Context, opts Options) (Result, error) {
	ch := make(chan outcome, 1)

	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return Result{}, context.Canceled
	}
	e.waiters = append(e.waiters, ch)
	if e.running {
		e.dirty = true
		e.retry = e.retry || opts.RetryRejected
	} else {
		e.running = true
		e.wg.Add(1)
		go e.loop(opts)
	}
	e.mu.Unlock()

	select {
	case out := <-ch:
		return out.res, out.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

func (e *Engine) loop(opts Options) {
	defer e.wg.Done()

	var merged Result
	var err error

	for pass := 0; ; pass++ {
		var res Result
		res, err = e.runner.Run(e.ctx, opts)
		if pass == 0 {
			merged = res
		} else {
			merged.merge(res)
		}

		e.mu.Lock()
		if err != nil || !e.dirty {
			break
		}
		e.dirty = false
		opts.RetryRejected = e.retry
		e.retry = false
		e.mu.Unlock()
		e.logger.Debug(e.ctx, "rerunning pass for joined triggers")
	}

	// still holding e.mu
	waiters := e.waiters
	e.waiters = nil
	e.running = false
	e.dirty = false
	e.retry = false
	hooks := append([]func(Result, error){}, e.onResult...)
	e.mu.Unlock()

	for _, fn := range hooks {
		fn(merged, err)
	}
	for _, ch := range waiters {
		ch <- outcome{res: merged, err: err}
	}
}

// Request schedules a pass after the debounce interval. Requests arriving
// before the timer fires push it back, so a burst produces one pass.
func (e *Engine) Request(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.stopped {
		return
	}

	if e.timer != nil {
		e.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.timer = time.AfterFunc(e.debounce, func() {
		e.mu.Lock()
		if gen != e.gen || e.stopped {
			// superseded by a later Request or by Stop
			e.mu.Unlock()
			return
		}
		e.timer = nil
		e.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if _, err := e.Trigger(ctx, Options{}); err != nil {
			e.logger.Warn(ctx, "requested sync failed", "error", err)
		}
	})
}

// Stop cancels a pending debounced request, cancels the pass in flight and
// waits for it to return. Triggers after Stop fail with context.Canceled.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.stopped = true
	e.gen++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
}
