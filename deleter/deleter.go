// Package deleter defers destruction of GPU resources until the GPU has
// finished with them.
//
// A request pairs a fence.Resource with a teardown action. Update runs the
// action once the resource has no attached fences; with wait set it blocks
// on outstanding fences first, so a final Update(true) drains everything.
//
// Thread Safety: Deleter is safe for concurrent use. Actions run without the
// internal lock held and may call RequestToDelete.
package deleter

import (
	"log/slog"
	"sync"

	"github.com/gogpu/gpuframe/fence"
	"github.com/gogpu/gpuframe/internal/logging"
)

type request struct {
	res    fence.Resource
	action func()
}

// Deleter holds pending deletion requests.
type Deleter struct {
	mu      sync.Mutex
	pending []request
	log     *slog.Logger

	executed uint64
}

// New creates a deleter. A nil logger is silent.
func New(log *slog.Logger) *Deleter {
	return &Deleter{log: logging.OrNop(log)}
}

// RequestToDelete queues action to run once res is no longer in use.
// A nil action is ignored.
func (d *Deleter) RequestToDelete(res fence.Resource, action func()) {
	if action == nil {
		return
	}
	d.mu.Lock()
	d.pending = append(d.pending, request{res: res, action: action})
	d.mu.Unlock()
}

// Update runs the action of every request whose resource is idle and
// returns how many ran. With wait, busy resources are waited on first and
// sweeps repeat until no request is pending, including requests queued by
// the actions themselves. Waiting cannot see work that is still being
// recorded: release or execute recording lists before Update(true).
func (d *Deleter) Update(wait bool) int {
	total := d.sweep(wait)
	for wait && d.Pending() > 0 {
		total += d.sweep(true)
	}
	return total
}

func (d *Deleter) sweep(wait bool) int {
	d.mu.Lock()
	var ready, busy []request
	for _, r := range d.pending {
		if r.res == nil || !r.res.InUse() {
			ready = append(ready, r)
		} else {
			busy = append(busy, r)
		}
	}
	if wait {
		d.pending = nil
	} else {
		d.pending = busy
	}
	d.mu.Unlock()

	if wait {
		for _, r := range busy {
			r.res.WaitToComplete()
		}
		ready = append(ready, busy...)
	}

	for _, r := range ready {
		r.action()
	}

	if n := len(ready); n > 0 {
		d.mu.Lock()
		d.executed += uint64(n)
		d.mu.Unlock()
		d.log.Debug("deleter: resources released", "count", n, "wait", wait)
	}
	return len(ready)
}

// Pending returns the number of queued requests.
func (d *Deleter) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.pending)
}

// Executed returns the total number of actions run.
func (d *Deleter) Executed() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()

	return d.executed
}
