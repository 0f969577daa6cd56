package sim

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
	"github.com/gogpu/gpuframe/internal/logging"
)

// Name is the registry name of the simulated backend.
const Name = "sim"

// DefaultImageCount is the default number of swapchain images.
const DefaultImageCount = 3

// Simulated failures.
var (
	// ErrDeviceLost is returned by every creation call after Lose.
	ErrDeviceLost = errors.New("sim: device lost")

	// ErrNotRecording is returned when a recorder is submitted or closed
	// outside a recording.
	ErrNotRecording = errors.New("sim: recorder not recording")

	// ErrForeignPrimitive is returned when signalling a primitive created by
	// another GPU.
	ErrForeignPrimitive = errors.New("sim: foreign fence primitive")
)

// Options configures a GPU.
type Options struct {
	// ImageCount is the swapchain length (0 uses DefaultImageCount).
	ImageCount int

	// Latency is the number of signals the GPU may lag behind. When more
	// are pending the oldest retire. Zero means work only retires through
	// Step, Flush or a CPU wait.
	Latency int

	// Logger receives device diagnostics. Nil is silent.
	Logger *slog.Logger
}

// Counters is a snapshot of device activity.
type Counters struct {
	Fences           int
	Allocators       int
	Recorders        int
	AllocatorResets  int
	Submits          int
	Signals          int
	Retired          int
	Barriers         int
	Draws            int
	Dispatches       int
	Heaps            int
	DescriptorWrites int
	Descriptors      int
	Buffers          int
	BytesWritten     uint64
	Presents         int
}

// String returns a one-line summary.
func (c Counters) String() string {
	return fmt.Sprintf("submits=%d signals=%d retired=%d draws=%d heaps=%d writes=%d buffers=%d bytes=%d presents=%d",
		c.Submits, c.Signals, c.Retired, c.Draws, c.Heaps, c.DescriptorWrites, c.Buffers, c.BytesWritten, c.Presents)
}

type signal struct {
	prim  *primitive
	value uint64
}

// GPU is a simulated device and direct queue.
type GPU struct {
	mu      sync.Mutex
	cond    *sync.Cond
	opts    Options
	log     *slog.Logger
	pending []signal
	image   uint32
	lost    bool
	nextID  uintptr
	stats   Counters
}

// New creates a simulated GPU.
func New(opts Options) *GPU {
	if opts.ImageCount <= 0 {
		opts.ImageCount = DefaultImageCount
	}
	g := &GPU{opts: opts, log: logging.OrNop(opts.Logger)}
	g.cond = sync.NewCond(&g.mu)
	// The first AcquireNextImage returns image 0.
	g.image = uint32(opts.ImageCount - 1) //nolint:gosec // G115: ImageCount is small
	return g
}

var (
	_ cmdlist.Device    = (*GPU)(nil)
	_ cmdlist.Queue     = (*GPU)(nil)
	_ descriptor.Device = (*GPU)(nil)
	_ cbuffer.Device    = (*GPU)(nil)
)

// Name returns the backend name.
func (g *GPU) Name() string { return Name }

// Queue returns the direct queue, which is the GPU itself.
func (g *GPU) Queue() cmdlist.Queue { return g }

// Counters returns a snapshot of device activity.
func (g *GPU) Counters() Counters {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.stats
}

// Pending returns the number of queued signals that have not retired.
func (g *GPU) Pending() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return len(g.pending)
}

// Step retires up to n queued signals in submission order and returns how
// many retired.
func (g *GPU) Step(n int) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.retireLocked(n)
}

// Flush retires every queued signal.
func (g *GPU) Flush() int {
	return g.Step(-1)
}

// Lose makes every later creation call fail with ErrDeviceLost and wakes
// blocked waiters, which return without their value retiring.
func (g *GPU) Lose() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.lost = true
	g.cond.Broadcast()
}

// Close retires all outstanding work.
func (g *GPU) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.retireLocked(-1)
	g.log.Debug("sim: device closed", "counters", g.stats.String())
}

// retireLocked retires n signals, or all of them when n < 0.
func (g *GPU) retireLocked(n int) int {
	if n < 0 || n > len(g.pending) {
		n = len(g.pending)
	}
	for _, s := range g.pending[:n] {
		s.prim.retired = max(s.prim.retired, s.value)
	}
	clear(g.pending[:n])
	g.pending = g.pending[n:]
	g.stats.Retired += n
	if n > 0 {
		g.cond.Broadcast()
	}
	return n
}

// Signal queues a signal of p to value after all submitted work.
func (g *GPU) Signal(p fence.Primitive, value uint64) error {
	prim, ok := p.(*primitive)
	if !ok || prim.gpu != g {
		return ErrForeignPrimitive
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	g.pending = append(g.pending, signal{prim: prim, value: value})
	g.stats.Signals++
	if g.opts.Latency > 0 && len(g.pending) > g.opts.Latency {
		g.retireLocked(len(g.pending) - g.opts.Latency)
	}
	// Waiters blocked on a value that was not yet queued rescan.
	g.cond.Broadcast()
	return nil
}

// Submit executes the commands recorded in r.
func (g *GPU) Submit(r cmdlist.Recorder) error {
	rec, ok := r.(*Recorder)
	if !ok {
		return fmt.Errorf("sim: foreign recorder %T", r)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !rec.closed {
		return ErrNotRecording
	}
	g.stats.Submits++
	g.stats.Barriers += rec.barriers
	g.stats.Draws += rec.draws
	g.stats.Dispatches += rec.dispatches
	return nil
}

// AcquireNextImage rotates to the next swapchain image.
func (g *GPU) AcquireNextImage() (uint32, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.image = (g.image + 1) % uint32(g.opts.ImageCount) //nolint:gosec // G115: ImageCount is small
	return g.image, nil
}

// Present counts a presentation of the current image.
func (g *GPU) Present() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stats.Presents++
	return nil
}

// ImageCount returns the swapchain length.
func (g *GPU) ImageCount() int { return g.opts.ImageCount }

func (g *GPU) newIDLocked() uintptr {
	g.nextID++
	return g.nextID
}

func (g *GPU) checkLocked() error {
	if g.lost {
		return ErrDeviceLost
	}
	return nil
}

// CreateFence returns a new timeline primitive.
func (g *GPU) CreateFence() (fence.Primitive, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkLocked(); err != nil {
		return nil, err
	}
	g.stats.Fences++
	return &primitive{gpu: g}, nil
}

// primitive is a timeline whose retired value is guarded by gpu.mu.
type primitive struct {
	gpu     *GPU
	retired uint64
}

func (p *primitive) Reached(v uint64) bool {
	p.gpu.mu.Lock()
	defer p.gpu.mu.Unlock()

	return p.retired >= v
}

// WaitFor advances the GPU in order until v retires. A value that was
// never queued cannot retire; WaitFor then blocks until another goroutine
// queues and retires it, or the device is lost.
func (p *primitive) WaitFor(v uint64) {
	g := p.gpu
	g.mu.Lock()
	defer g.mu.Unlock()

	for p.retired < v {
		if g.lost {
			g.log.Error("sim: fence wait abandoned, device lost", "value", v)
			return
		}
		idx := -1
		for i, s := range g.pending {
			if s.prim == p && s.value >= v {
				idx = i
				break
			}
		}
		if idx < 0 {
			g.cond.Wait()
			continue
		}
		g.retireLocked(idx + 1)
	}
}

func (p *primitive) Destroy() {}
