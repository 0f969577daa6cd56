package cmdlist

import (
	"errors"
	"testing"

	"github.com/gogpu/gpuframe/descriptor"
)

func newTestManager(t *testing.T, opts ManagerOptions) (*Manager, *fakeDevice, *fakeQueue) {
	t.Helper()
	dev := &fakeDevice{}
	q := &fakeQueue{}
	return NewManager(dev, q, opts), dev, q
}

func prepared(t *testing.T, m *Manager, typ Type) *CommandList {
	t.Helper()
	l, err := m.Acquire(typ)
	if err != nil {
		t.Fatalf("Acquire(%s): %v", typ, err)
	}
	if err := l.Prepare(); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return l
}

func TestStateString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Initial, "Initial"},
		{ReadyToRecord, "ReadyToRecord"},
		{Closed, "Closed"},
		{Execute, "Execute"},
		{Finish, "Finish"},
		{State(99), "State(99)"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
	if Copy.String() != "Copy" || Type(9).String() != "Type(9)" {
		t.Error("Type.String mismatch")
	}
}

func TestRecordingRequiresReadyToRecord(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerOptions{})
	l, err := m.Acquire(Direct)
	if err != nil {
		t.Fatal(err)
	}
	if l.State() != Initial {
		t.Fatalf("fresh list state = %s", l.State())
	}

	if err := l.Draw(3, 1, 0, 0); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Draw before Prepare err = %v", err)
	}
	if err := l.Close(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Close before Prepare err = %v", err)
	}

	if err := l.Prepare(); err != nil {
		t.Fatal(err)
	}
	if err := l.Prepare(); !errors.Is(err, ErrWrongState) {
		t.Errorf("double Prepare err = %v", err)
	}
	if err := l.Draw(3, 1, 0, 0); err != nil {
		t.Fatalf("Draw while recording: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); !errors.Is(err, ErrNotRecording) {
		t.Errorf("double Close err = %v", err)
	}

	ops := []func() error{
		func() error { return l.Draw(1, 1, 0, 0) },
		func() error { return l.DrawIndexed(1, 1, 0, 0, 0) },
		func() error { return l.Dispatch(1, 1, 1) },
		func() error { return l.ClearRenderTarget(&fakeImage{}, [4]float32{}) },
		func() error { return l.ClearDepthStencil(&fakeImage{}, 1, 0) },
		func() error { return l.SetViewport(Viewport{Width: 1, Height: 1}) },
		func() error { return l.SetScissor(Rect{Width: 1, Height: 1}) },
		func() error { return l.SetRenderTarget(RenderTarget{}) },
		func() error { return l.SetPipeline(fakePipeline{}) },
		func() error { return l.SetDescriptorTable(0, descriptor.Region{}) },
		func() error { return l.SetVertexState(0) },
		func() error { return l.SetIndexState(&fakeBuffer{}, 0, IndexUint16) },
		func() error { return l.Transition(&fakeImage{}, UsageCopyDst) },
	}
	for i, op := range ops {
		if err := op(); !errors.Is(err, ErrNotRecording) {
			t.Errorf("op %d on closed list err = %v, want ErrNotRecording", i, err)
		}
	}
}

func TestSetUsedIsSetInsert(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)
	buf := &fakeBuffer{}

	for i := 0; i < 3; i++ {
		if err := l.SetUsed(buf); err != nil {
			t.Fatal(err)
		}
	}
	if l.UsedResources() != 1 {
		t.Errorf("UsedResources = %d, want 1", l.UsedResources())
	}
	if buf.Fences() != 1 || !buf.InUse() {
		t.Errorf("buffer fences = %d", buf.Fences())
	}
	if !l.IsUsing(buf) {
		t.Error("IsUsing(buf) = false")
	}

	// Legal after Close as well.
	l.Close()
	if err := l.SetUsed(&fakeBuffer{}); err != nil {
		t.Errorf("SetUsed on closed list: %v", err)
	}
}

func TestBarrierBatching(t *testing.T) {
	m, dev, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)
	rec := dev.recorders[0]

	a := &fakeImage{usage: UsageCommon}
	b := &fakeImage{usage: UsageShaderResource}
	c := &fakeImage{usage: UsagePresent}

	l.Transition(a, UsageRenderTarget)
	l.Transition(b, UsageCopyDst)
	l.Transition(c, UsageRenderTarget)
	if len(rec.barriers) != 0 {
		t.Fatal("transitions flushed before a draw")
	}
	if l.PendingBarriers() != 3 {
		t.Fatalf("pending = %d, want 3", l.PendingBarriers())
	}

	l.Draw(3, 1, 0, 0)
	if len(rec.barriers) != 1 || len(rec.barriers[0]) != 3 {
		t.Fatalf("expected one batch of 3 barriers, got %v", rec.barriers)
	}
	if got := rec.ops; len(got) != 2 || got[0] != "barriers" || got[1] != "draw" {
		t.Errorf("ops = %v, want [barriers draw]", got)
	}
	if a.Usage() != UsageRenderTarget {
		t.Errorf("image usage not updated: %d", a.Usage())
	}
	if l.PendingBarriers() != 0 {
		t.Error("pending barriers left after flush")
	}
}

func TestBarrierCoalescing(t *testing.T) {
	m, dev, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)
	rec := dev.recorders[0]

	img := &fakeImage{usage: UsageCommon}
	l.Transition(img, UsageRenderTarget)
	l.Transition(img, UsageShaderResource)
	if l.PendingBarriers() != 1 {
		t.Fatalf("pending = %d, want 1", l.PendingBarriers())
	}

	// Back to where it started: the barrier disappears.
	l.Transition(img, UsageCommon)
	if l.PendingBarriers() != 0 {
		t.Errorf("round-trip transition left %d barriers", l.PendingBarriers())
	}

	// No-op transition records nothing.
	l.Transition(img, UsageCommon)
	l.Transition(img, UsageCopySrc)
	l.Close()
	if len(rec.barriers) != 1 {
		t.Fatalf("Close did not flush: %v", rec.barriers)
	}
	got := rec.barriers[0][0]
	if got.Before != UsageCommon || got.After != UsageCopySrc {
		t.Errorf("barrier = %+v", got)
	}
}

func TestClearFlushesBarriers(t *testing.T) {
	m, dev, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)
	img := &fakeImage{}

	l.Transition(img, UsageRenderTarget)
	l.ClearRenderTarget(img, [4]float32{0, 0, 0, 1})
	ops := dev.recorders[0].ops
	if len(ops) != 2 || ops[0] != "barriers" || ops[1] != "clear" {
		t.Errorf("ops = %v", ops)
	}
	if !l.IsUsing(img) {
		t.Error("cleared image not marked used")
	}
}

func TestPipelineKindChecked(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)

	l.SetPipeline(fakePipeline{compute: false})
	if err := l.Dispatch(1, 1, 1); !errors.Is(err, ErrPipelineKind) {
		t.Errorf("dispatch with graphics pipeline err = %v", err)
	}
	l.SetPipeline(fakePipeline{compute: true})
	if err := l.Draw(3, 1, 0, 0); !errors.Is(err, ErrPipelineKind) {
		t.Errorf("draw with compute pipeline err = %v", err)
	}
	if err := l.Dispatch(8, 8, 1); err != nil {
		t.Errorf("dispatch with compute pipeline: %v", err)
	}
}

func TestBindingsMarkResourcesUsed(t *testing.T) {
	m, _, _ := newTestManager(t, ManagerOptions{})
	l := prepared(t, m, Direct)

	vb, ib := &fakeBuffer{}, &fakeBuffer{}
	color, depth := &fakeImage{}, &fakeImage{}
	heap := &descriptor.Heap{}

	l.SetRenderTarget(RenderTarget{Colors: []Image{color}, Depth: depth})
	l.SetVertexState(0, VertexBuffer{Buffer: vb, Stride: 16})
	l.SetIndexState(ib, 0, IndexUint32)
	l.SetDescriptorTable(0, descriptor.Region{Heap: heap, Count: 1})
	l.DrawIndexed(6, 1, 0, 0, 0)

	for name, r := range map[string]interface{ InUse() bool }{
		"vertex": vb, "index": ib, "color": color, "depth": depth, "heap": heap,
	} {
		if !r.InUse() {
			t.Errorf("%s not attached to list fence", name)
		}
	}
	if l.UsedResources() != 5 {
		t.Errorf("UsedResources = %d, want 5", l.UsedResources())
	}
	if l.Commands() != 5 {
		t.Errorf("Commands = %d, want 5", l.Commands())
	}
}
