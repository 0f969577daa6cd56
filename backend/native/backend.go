package native

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/internal/cache"
	"github.com/gogpu/gpuframe/internal/logging"
)

// Name is the registry name of the native backend.
const Name = "native"

// layoutCacheLimit bounds the bind group layouts kept per backend. Layouts
// are keyed by the binding kinds of a table.
const layoutCacheLimit = 64

// Options configures a Backend.
type Options struct {
	// Logger receives backend diagnostics. Nil is silent.
	Logger *slog.Logger
}

// Backend implements gpuframe.Backend over a HAL device and queue.
//
// Thread Safety: Backend is safe for concurrent use; HAL calls that touch
// shared state are serialized by an internal mutex.
type Backend struct {
	device hal.Device
	queue  hal.Queue
	log    *slog.Logger

	// instance is set when the backend opened the device itself.
	instance hal.Instance
	owned    bool

	mu      sync.Mutex
	pending []hal.CommandBuffer
	layouts *cache.Cache[string, hal.BindGroupLayout]
	closed  bool
}

var _ gpuframe.Backend = (*Backend)(nil)

// NewFromHAL wraps an existing HAL device and queue. The backend does not
// take ownership; Close leaves the device alive.
func NewFromHAL(device hal.Device, queue hal.Queue, opts Options) (*Backend, error) {
	if device == nil || queue == nil {
		return nil, ErrNilDevice
	}
	b := &Backend{
		device:  device,
		queue:   queue,
		log:     logging.OrNop(opts.Logger),
		layouts: cache.New[string, hal.BindGroupLayout](layoutCacheLimit),
	}
	b.layouts.OnEvict(func(_ string, l hal.BindGroupLayout) {
		b.device.DestroyBindGroupLayout(l)
	})
	return b, nil
}

// NewFromProvider shares the GPU device of a host application. The provider
// must expose HalDevice() and HalQueue() returning HAL objects, as the
// gogpu application framework does.
func NewFromProvider(provider gpucontext.DeviceProvider, opts Options) (*Backend, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: nil provider", ErrProvider)
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrProvider, provider)
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrProvider)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrProvider)
	}
	return NewFromHAL(device, queue, opts)
}

// Name returns the backend name.
func (b *Backend) Name() string { return Name }

// Queue returns the direct queue.
func (b *Backend) Queue() cmdlist.Queue { return (*directQueue)(b) }

// Device returns the HAL device.
func (b *Backend) Device() hal.Device { return b.device }

// Close releases cached layouts and, when the backend opened the device
// itself, the device and instance.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	// Staged buffers belong to their recorders.
	b.pending = nil
	b.layouts.Range(func(_ string, l hal.BindGroupLayout) bool {
		b.device.DestroyBindGroupLayout(l)
		return true
	})
	b.layouts.Clear()

	if b.owned {
		b.device.Destroy()
		if b.instance != nil {
			b.instance.Destroy()
		}
	}
	b.log.Debug("native: backend closed", "owned", b.owned)
}
