package narration

import (
	"context"
	"sync"
	"sync/atomic"
)

// Speaker consumes narration scripts. Cancel interrupts any in-progress
// utterance and must be called before Speak, mirroring the
// cancel-then-speak contract of the browser speechSynthesis engine.
type Speaker interface {
	Cancel()
	Speak(script string) error
}

// Dispatcher is the scan-complete channel between the analysis pipeline and
// a single speech consumer. It holds at most one undelivered script: a new
// Publish replaces whatever is still waiting (latest-wins), so the voice
// report always narrates the most recent scan instead of queueing stale ones.
type Dispatcher struct {
	mu     sync.Mutex
	cond   *sync.Cond
	script *string
	closed bool

	published uint64
	dropped   uint64
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

// Publish stores the script as the pending delivery, replacing any
// undelivered predecessor. It never blocks.
func (d *Dispatcher) Publish(script string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if d.script != nil {
		atomic.AddUint64(&d.dropped, 1)
	}
	d.script = &script
	atomic.AddUint64(&d.published, 1)
	d.cond.Broadcast()
}

// next blocks until a script is pending, the dispatcher closes, or ctx ends.
func (d *Dispatcher) next(ctx context.Context) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for d.script == nil && !d.closed && ctx.Err() == nil {
		d.cond.Wait()
	}
	if d.script == nil {
		return "", false
	}
	s := *d.script
	d.script = nil
	return s, true
}

// Run drains scripts to the speaker until ctx is canceled or the dispatcher
// closes. Each delivery cancels any in-progress utterance first. Intended to
// run as a single goroutine; multiple consumers would race for deliveries.
func (d *Dispatcher) Run(ctx context.Context, sp Speaker) error {
	stop := context.AfterFunc(ctx, d.wake)
	defer stop()

	for {
		script, ok := d.next(ctx)
		if !ok {
			return ctx.Err()
		}
		sp.Cancel()
		_ = sp.Speak(script)
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

// wake unblocks a waiting consumer without delivering anything.
func (d *Dispatcher) wake() {
	d.mu.Lock()
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Close shuts the dispatcher down; pending but undelivered scripts are
// discarded and Run returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.script = nil
	d.cond.Broadcast()
	d.mu.Unlock()
}

// Stats reports how many scripts were published and how many were replaced
// before delivery.
func (d *Dispatcher) Stats() (published, dropped uint64) {
	return atomic.LoadUint64(&d.published), atomic.LoadUint64(&d.dropped)
}
