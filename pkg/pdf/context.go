package pdf

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrAborted is returned when an operation is cancelled through a Cookie.
var ErrAborted = errors.New("pdf: operation aborted")

// Lock classes for the shared engine state. Every lock is always taken
// through the engine so lock ordering stays consistent.
const (
	lockAlloc = iota
	lockFonts
	lockImages
	lockGeneral
	lockMax
)

// AllocStats reports memory accounted through an Allocator.
type AllocStats struct {
	Current int64
	Peak    int64
	Total   int64
}

// Allocator tracks buffer allocations made on behalf of an Engine. The
// soft limit is recorded for observability, not enforced.
type Allocator struct {
	mu        sync.Mutex
	current   int64
	peak      int64
	total     int64
	softLimit int64
}

func (a *Allocator) track(n int64) {
	a.mu.Lock()
	a.current += n
	a.total += n
	if a.current > a.peak {
		a.peak = a.current
	}
	a.mu.Unlock()
}

func (a *Allocator) release(n int64) {
	a.mu.Lock()
	a.current -= n
	a.mu.Unlock()
}

// Stats returns a snapshot of the allocator counters.
func (a *Allocator) Stats() AllocStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return AllocStats{Current: a.current, Peak: a.peak, Total: a.total}
}

// Engine holds state shared by all documents: the lock table, the
// allocation accounting, and the font cache. Construct one per process
// and hand out Contexts from it.
type Engine struct {
	locks [lockMax]sync.Mutex
	alloc *Allocator
	fonts *fontCache
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSoftMemoryLimit records a soft memory limit on the engine
// allocator.
func WithSoftMemoryLimit(bytes int64) EngineOption {
	return func(e *Engine) {
		e.alloc.softLimit = bytes
	}
}

// NewEngine creates the shared engine state.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		alloc: &Allocator{},
		fonts: newFontCache(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Alloc returns the engine allocator.
func (e *Engine) Alloc() *Allocator { return e.alloc }

func (e *Engine) lock(class int) {
	e.locks[class].Lock()
}

func (e *Engine) unlock(class int) {
	e.locks[class].Unlock()
}

// Cookie allows cooperative cancellation of a long-running operation
// and carries its error count. Safe for concurrent use.
type Cookie struct {
	abort  atomic.Bool
	Errors atomic.Int32
}

// Abort requests that the operation using this cookie stop at the next
// checkpoint.
func (c *Cookie) Abort() {
	c.abort.Store(true)
}

// Aborted reports whether Abort has been called.
func (c *Cookie) Aborted() bool {
	return c.abort.Load()
}

// Context is a lightweight per-call view of an Engine. Clones share the
// engine state; each clone may carry its own Cookie.
type Context struct {
	engine *Engine
	cookie *Cookie
}

// NewContext creates a context bound to the engine.
func NewContext(engine *Engine) *Context {
	return &Context{engine: engine}
}

// Clone returns a context sharing the engine but with no cookie.
func (c *Context) Clone() *Context {
	return &Context{engine: c.engine}
}

// WithCookie returns a clone of the context carrying the cookie.
func (c *Context) WithCookie(cookie *Cookie) *Context {
	return &Context{engine: c.engine, cookie: cookie}
}

// Aborted reports whether the context's cookie requested cancellation.
func (c *Context) Aborted() bool {
	return c.cookie != nil && c.cookie.Aborted()
}

// countError increments the cookie error counter, if any.
func (c *Context) countError() {
	if c.cookie != nil {
		c.cookie.Errors.Add(1)
	}
}

func (c *Context) track(n int64) {
	c.engine.alloc.track(n)
}

func (c *Context) release(n int64) {
	c.engine.alloc.release(n)
}
