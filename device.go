package gpuframe

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/deleter"
	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
)

// ErrFrameInProgress is returned by BeginFrame when the previous frame was
// not presented.
var ErrFrameInProgress = errors.New("gpuframe: frame already in progress")

// Device owns one command list manager, descriptor heap manager, constant
// buffer allocator and deleter over a Backend, and drives them through the
// frame loop.
//
// Frame loop:
//
//	          BeginFrame                    PresentFrame
//	idle ─────────────────▶ recording ─────────────────────▶ idle
//	                          │    ▲
//	                          └────┘ Submit (fresh current list)
//
// Thread Safety: Device is not safe for concurrent use. One goroutine
// records and submits; the managers it owns are individually safe, so
// Stats may be read from elsewhere.
type Device struct {
	backend   Backend
	presenter Presenter
	cfg       Config
	log       *slog.Logger

	lists     *cmdlist.Manager
	heaps     *descriptor.HeapManager
	constants *cbuffer.RingAllocator
	deleter   *deleter.Deleter

	current   *cmdlist.CommandList
	inFrame   bool
	image     uint32
	frame     uint64
	destroyed bool
}

// New creates a Device over b.
func New(b Backend, opts ...Option) (*Device, error) {
	if b == nil {
		return nil, ErrNilBackend
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}

	log := o.logger
	if log == nil {
		log = Logger()
	}
	presenter := o.presenter
	if presenter == nil && !o.noPresent {
		presenter, _ = b.(Presenter)
	}

	d := &Device{
		backend:   b,
		presenter: presenter,
		cfg:       o.cfg,
		log:       log,
		lists: cmdlist.NewManager(b, b.Queue(), cmdlist.ManagerOptions{
			BufferCount:      o.cfg.BufferCount,
			SharedAllocators: o.cfg.SharedAllocators,
			Logger:           log,
		}),
		heaps: descriptor.NewHeapManager(b, descriptor.Options{
			Capacities: o.cfg.Heaps,
			CacheLimit: o.cfg.TableCacheLimit,
			Logger:     log,
		}),
		constants: cbuffer.New(b, cbuffer.Options{
			BlockSize: o.cfg.ConstantBlockSize,
			Alignment: o.cfg.ConstantAlignment,
			Logger:    log,
		}),
		deleter: deleter.New(log),
		// The first frame renders to image 0.
		image: uint32(o.cfg.BufferCount - 1), //nolint:gosec // G115: validated <= MaxBufferCount
	}
	log.Info("gpuframe: device created",
		"backend", b.Name(),
		"buffers", o.cfg.BufferCount,
		"vsync", o.cfg.VSync,
		"presenter", presenter != nil)
	return d, nil
}

// Config returns the configuration the device was created with.
func (d *Device) Config() Config { return d.cfg }

// Backend returns the backend.
func (d *Device) Backend() Backend { return d.backend }

// CommandLists returns the command list manager.
func (d *Device) CommandLists() *cmdlist.Manager { return d.lists }

// Heaps returns the descriptor heap manager.
func (d *Device) Heaps() *descriptor.HeapManager { return d.heaps }

// Constants returns the constant buffer allocator.
func (d *Device) Constants() *cbuffer.RingAllocator { return d.constants }

// Frame returns the number of presented frames.
func (d *Device) Frame() uint64 { return d.frame }

// Image returns the swapchain image index of the current frame.
func (d *Device) Image() uint32 { return d.image }

// BeginFrame starts a frame: it acquires the next swapchain image, waits
// (with vsync) for the work that last rendered to it, recycles retired
// lists and opens the frame's direct command list.
func (d *Device) BeginFrame() error {
	if d.destroyed {
		return ErrDestroyed
	}
	if d.inFrame {
		return ErrFrameInProgress
	}

	if d.presenter != nil {
		idx, err := d.presenter.AcquireNextImage()
		if err != nil {
			return fmt.Errorf("%w: acquire image: %w", ErrPresent, err)
		}
		d.image = idx
	} else {
		d.image = (d.image + 1) % uint32(d.cfg.BufferCount) //nolint:gosec // G115: validated <= MaxBufferCount
	}

	d.lists.Sync(d.image, d.cfg.VSync)
	d.lists.Update(false)

	d.inFrame = true
	if _, err := d.currentList(); err != nil {
		d.inFrame = false
		return err
	}
	return nil
}

// CurrentCommandList returns the direct list being recorded, acquiring and
// preparing one if needed.
func (d *Device) CurrentCommandList() (*cmdlist.CommandList, error) {
	if d.destroyed {
		return nil, ErrDestroyed
	}
	if !d.inFrame {
		return nil, ErrNoFrame
	}
	return d.currentList()
}

func (d *Device) currentList() (*cmdlist.CommandList, error) {
	if d.current != nil {
		return d.current, nil
	}
	l, err := d.lists.Acquire(cmdlist.Direct)
	if err != nil {
		return nil, err
	}
	if err := l.Prepare(); err != nil {
		if rerr := d.lists.Release(l); rerr != nil {
			d.log.Warn("gpuframe: release after failed prepare", "err", rerr)
		}
		return nil, err
	}
	d.current = l
	return l, nil
}

// BindConstants uploads data to the constant buffer ring and binds it as a
// single-entry descriptor table at slot of the current list. Identical
// bindings within a heap's lifetime reuse the table written earlier.
func (d *Device) BindConstants(slot uint32, data []byte) error {
	l, err := d.CurrentCommandList()
	if err != nil {
		return err
	}
	a, err := d.constants.Upload(data)
	if err != nil {
		return err
	}
	if err := l.SetUsed(a.Block); err != nil {
		return err
	}
	return d.bindTable(l, slot, descriptor.ShaderResource, []descriptor.Binding{{
		Kind:     descriptor.ConstantBufferView,
		Resource: a.Block.Native().Handle(),
		Offset:   a.Offset,
		Size:     a.Size,
	}})
}

// BindTable binds a descriptor table holding bindings at slot of the
// current list, going through the table cache.
func (d *Device) BindTable(slot uint32, t descriptor.HeapType, bindings []descriptor.Binding) error {
	l, err := d.CurrentCommandList()
	if err != nil {
		return err
	}
	return d.bindTable(l, slot, t, bindings)
}

func (d *Device) bindTable(l *cmdlist.CommandList, slot uint32, t descriptor.HeapType, bindings []descriptor.Binding) error {
	r, err := d.heaps.AcquireTable(t, bindings)
	if err != nil {
		return err
	}
	return l.SetDescriptorTable(slot, r)
}

// Submit closes and executes the current list, then opens a fresh one.
// With wait set it blocks until the submitted work retires.
func (d *Device) Submit(wait bool) error {
	if d.destroyed {
		return ErrDestroyed
	}
	if !d.inFrame {
		return ErrNoFrame
	}
	if err := d.executeCurrent(wait); err != nil {
		return err
	}
	_, err := d.currentList()
	return err
}

func (d *Device) executeCurrent(wait bool) error {
	l := d.current
	if l == nil {
		return nil
	}
	d.current = nil
	if err := l.Close(); err != nil {
		if rerr := d.lists.Release(l); rerr != nil {
			d.log.Warn("gpuframe: release after failed close", "err", rerr)
		}
		return err
	}
	if err := d.lists.Execute(l, wait); err != nil {
		if errors.Is(err, fence.ErrSignal) {
			return err
		}
		if rerr := d.lists.Release(l); rerr != nil {
			d.log.Warn("gpuframe: release after failed execute", "err", rerr)
		}
		return err
	}
	return nil
}

// PresentFrame executes the current list, presents the image and runs the
// per-frame recycling of descriptor heaps, constant buffers and deferred
// deletions. It never blocks on the GPU.
func (d *Device) PresentFrame() error {
	if d.destroyed {
		return ErrDestroyed
	}
	if !d.inFrame {
		return ErrNoFrame
	}
	d.inFrame = false

	err := d.executeCurrent(false)
	if err == nil && d.presenter != nil {
		if perr := d.presenter.Present(); perr != nil {
			err = fmt.Errorf("%w: %w", ErrPresent, perr)
		}
	}

	d.heaps.UpdateRegions()
	d.constants.UpdateStatus()
	d.deleter.Update(false)
	d.frame++
	return err
}

// WaitIdle blocks until all submitted work has retired and recycles every
// retired list, heap and constant block.
func (d *Device) WaitIdle() {
	if d.destroyed {
		return
	}
	d.lists.WaitIdle()
	d.heaps.UpdateRegions()
	d.constants.UpdateStatus()
	d.deleter.Update(false)
}

// DeleteWhenIdle runs action once res is no longer referenced by in-flight
// work. It is checked every PresentFrame and drained by Destroy.
func (d *Device) DeleteWhenIdle(res fence.Resource, action func()) {
	d.deleter.RequestToDelete(res, action)
}

// Destroy waits for the GPU, destroys every list, heap and constant block
// and runs all pending deletions. The backend is not closed.
func (d *Device) Destroy() {
	if d.destroyed {
		return
	}
	if d.current != nil {
		if err := d.lists.Release(d.current); err != nil {
			d.log.Warn("gpuframe: release current list", "err", err)
		}
		d.current = nil
	}
	d.inFrame = false

	d.lists.WaitAndClear()
	d.constants.UpdateStatus()
	d.constants.Destroy()
	d.heaps.UpdateRegions()
	d.heaps.Destroy()
	d.deleter.Update(true)
	d.destroyed = true
	d.log.Info("gpuframe: device destroyed", "frames", d.frame)
}

// Stats aggregates the state of every manager.
type Stats struct {
	Frame          uint64
	Image          uint32
	Lists          cmdlist.ManagerStats
	Descriptors    descriptor.Stats
	Constants      cbuffer.Stats
	PendingDeletes int
}

// String returns a multi-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("frame=%d image=%d\n  lists: %s\n  descriptors: %s\n  constants: %s\n  pending deletes: %d",
		s.Frame, s.Image, s.Lists, s.Descriptors, s.Constants, s.PendingDeletes)
}

// Stats returns a snapshot of the device state.
func (d *Device) Stats() Stats {
	return Stats{
		Frame:          d.frame,
		Image:          d.image,
		Lists:          d.lists.Stats(),
		Descriptors:    d.heaps.Stats(),
		Constants:      d.constants.Stats(),
		PendingDeletes: d.deleter.Pending(),
	}
}
