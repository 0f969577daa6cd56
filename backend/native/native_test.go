//go:build !nogpu

package native

import (
	"errors"
	"testing"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
	"github.com/gogpu/gpuframe/fence"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	device, queue := createNoopDevice(t)
	b, err := NewFromHAL(device, queue, Options{})
	if err != nil {
		t.Fatalf("NewFromHAL: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestNewFromHALRejectsNil(t *testing.T) {
	if _, err := NewFromHAL(nil, nil, Options{}); !errors.Is(err, ErrNilDevice) {
		t.Errorf("err = %v, want ErrNilDevice", err)
	}
}

func TestNewFromProviderNil(t *testing.T) {
	if _, err := NewFromProvider(nil, Options{}); !errors.Is(err, ErrProvider) {
		t.Errorf("err = %v, want ErrProvider", err)
	}
}

func TestBackendName(t *testing.T) {
	b := newTestBackend(t)
	if b.Name() != Name {
		t.Errorf("Name() = %q, want %q", b.Name(), Name)
	}
	if b.Device() == nil {
		t.Error("Device() = nil")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	device, queue := createNoopDevice(t)
	b, err := NewFromHAL(device, queue, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b.Close()
	b.Close()
}

func TestAcquireTableCreatesBindGroup(t *testing.T) {
	b := newTestBackend(t)
	buf, err := b.CreateBuffer(1024)
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer buf.Destroy()

	m := descriptor.NewHeapManager(b, descriptor.Options{
		Capacities: descriptor.Capacities{ShaderResource: 8},
	})
	defer m.Destroy()

	bindings := []descriptor.Binding{
		{Kind: descriptor.ConstantBufferView, Resource: buf.Handle(), Size: 256},
		{Kind: descriptor.ShaderResourceView, Resource: buf.Handle(), Offset: 256, Size: 256},
	}
	r, err := m.AcquireTable(descriptor.ShaderResource, bindings)
	if err != nil {
		t.Fatalf("AcquireTable: %v", err)
	}
	g, err := b.group(r)
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if g == nil {
		t.Fatal("group = nil")
	}
	if n := b.layouts.Len(); n != 1 {
		t.Errorf("layouts = %d, want 1", n)
	}

	// A new kind set adds one layout; repeats reuse it.
	if _, err := m.AcquireTable(descriptor.ShaderResource, bindings[:1]); err != nil {
		t.Fatal(err)
	}
	if _, err := m.AcquireTable(descriptor.ShaderResource, []descriptor.Binding{bindings[0]}); err != nil {
		t.Fatal(err)
	}
	if n := b.layouts.Len(); n != 2 {
		t.Errorf("layouts = %d, want 2", n)
	}
}

func TestWriteDescriptorsErrors(t *testing.T) {
	b := newTestBackend(t)
	nh, err := b.CreateHeap(descriptor.ShaderResource, 2)
	if err != nil {
		t.Fatal(err)
	}
	defer nh.Destroy()

	cbv := descriptor.Binding{Kind: descriptor.ConstantBufferView, Resource: 1, Size: 16}
	if err := b.WriteDescriptors(nh, 1, []descriptor.Binding{cbv, cbv}); !errors.Is(err, ErrSlotRange) {
		t.Errorf("overflow err = %v, want ErrSlotRange", err)
	}
	sampler := descriptor.Binding{Kind: descriptor.SamplerState}
	if err := b.WriteDescriptors(nh, 0, []descriptor.Binding{sampler}); !errors.Is(err, ErrUnsupportedBinding) {
		t.Errorf("sampler err = %v, want ErrUnsupportedBinding", err)
	}

	other := newTestBackend(t)
	if err := other.WriteDescriptors(nh, 0, []descriptor.Binding{cbv}); !errors.Is(err, ErrForeignObject) {
		t.Errorf("foreign err = %v, want ErrForeignObject", err)
	}
}

func TestUniformBufferWriteBounds(t *testing.T) {
	b := newTestBackend(t)
	buf, err := b.CreateBuffer(64)
	if err != nil {
		t.Fatal(err)
	}
	defer buf.Destroy()

	if err := buf.Write(0, make([]byte, 64)); err != nil {
		t.Errorf("full write: %v", err)
	}
	if err := buf.Write(32, make([]byte, 64)); !errors.Is(err, cbuffer.ErrOverflow) {
		t.Errorf("err = %v, want ErrOverflow", err)
	}
}

func TestRecorderRequiresEncoding(t *testing.T) {
	b := newTestBackend(t)
	a, err := b.CreateAllocator(cmdlist.Direct)
	if err != nil {
		t.Fatal(err)
	}
	r, err := b.CreateRecorder(cmdlist.Direct, a)
	if err != nil {
		t.Fatalf("CreateRecorder: %v", err)
	}
	defer r.Destroy()

	if err := r.Close(); !errors.Is(err, ErrNotEncoding) {
		t.Errorf("Close before Reset: err = %v, want ErrNotEncoding", err)
	}
	if err := r.Reset(a); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if err := b.Queue().Submit(r); !errors.Is(err, ErrNotEncoding) {
		t.Errorf("Submit while encoding: err = %v, want ErrNotEncoding", err)
	}
}

func TestSubmitBatchesUntilSignal(t *testing.T) {
	b := newTestBackend(t)
	a, err := b.CreateAllocator(cmdlist.Direct)
	if err != nil {
		t.Fatal(err)
	}
	p, err := b.CreateFence()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()

	q := b.Queue()
	for i := 0; i < 2; i++ {
		r, err := b.CreateRecorder(cmdlist.Direct, a)
		if err != nil {
			t.Fatal(err)
		}
		defer r.Destroy()
		if err := r.Reset(a); err != nil {
			t.Fatalf("Reset: %v", err)
		}
		if err := r.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}
		if err := q.Submit(r); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	if n := len(b.pending); n != 2 {
		t.Fatalf("staged = %d, want 2", n)
	}
	if err := q.Signal(p, 1); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	if n := len(b.pending); n != 0 {
		t.Errorf("staged after Signal = %d, want 0", n)
	}
}

type foreignRecorder struct{ cmdlist.Recorder }

type foreignFence struct{ fence.Primitive }

func TestQueueRejectsForeignObjects(t *testing.T) {
	b := newTestBackend(t)
	if err := b.Queue().Submit(foreignRecorder{}); !errors.Is(err, ErrForeignObject) {
		t.Errorf("Submit err = %v, want ErrForeignObject", err)
	}
	if err := b.Queue().Signal(foreignFence{}, 1); !errors.Is(err, ErrForeignObject) {
		t.Errorf("Signal err = %v, want ErrForeignObject", err)
	}

	other := newTestBackend(t)
	p, err := other.CreateFence()
	if err != nil {
		t.Fatal(err)
	}
	defer p.Destroy()
	if err := b.Queue().Signal(p, 1); !errors.Is(err, ErrForeignObject) {
		t.Errorf("Signal with other backend's fence: err = %v, want ErrForeignObject", err)
	}
}

func TestTextureUsageTracking(t *testing.T) {
	b := newTestBackend(t)
	tex, err := b.CreateTexture(TextureDescriptor{
		Label:  "target",
		Width:  16,
		Height: 16,
		Format: gputypes.TextureFormatBGRA8Unorm,
		Usage:  gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer tex.Destroy()

	if got := tex.Usage(); got != cmdlist.UsageUndefined {
		t.Errorf("initial usage = %v, want UsageUndefined", got)
	}
	tex.SetUsage(cmdlist.UsageRenderTarget)
	if got := tex.Usage(); got != cmdlist.UsageRenderTarget {
		t.Errorf("usage = %v, want UsageRenderTarget", got)
	}
	if tex.View() == nil {
		t.Error("View() = nil")
	}
}

func TestTextureUsageMapping(t *testing.T) {
	tests := []struct {
		in   cmdlist.Usage
		want gputypes.TextureUsage
	}{
		{cmdlist.UsageUndefined, 0},
		{cmdlist.UsageCommon, 0},
		{cmdlist.UsageRenderTarget, gputypes.TextureUsageRenderAttachment},
		{cmdlist.UsageDepthWrite, gputypes.TextureUsageRenderAttachment},
		{cmdlist.UsagePresent, gputypes.TextureUsageRenderAttachment},
		{cmdlist.UsageShaderResource, gputypes.TextureUsageTextureBinding},
		{cmdlist.UsageUnorderedAccess, gputypes.TextureUsageStorageBinding},
		{cmdlist.UsageCopySrc, gputypes.TextureUsageCopySrc},
		{cmdlist.UsageCopyDst, gputypes.TextureUsageCopyDst},
	}
	for _, tt := range tests {
		if got := textureUsage(tt.in); got != tt.want {
			t.Errorf("textureUsage(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
