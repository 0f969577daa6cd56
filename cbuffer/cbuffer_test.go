package cbuffer

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/gogpu/gpuframe/fence"
)

var errFake = errors.New("fake: out of memory")

type fakeBuffer struct {
	size      uint64
	data      []byte
	destroyed bool
}

func (b *fakeBuffer) Write(offset uint64, data []byte) error {
	copy(b.data[offset:], data)
	return nil
}

func (b *fakeBuffer) Handle() uintptr { return uintptr(b.size) }

func (b *fakeBuffer) Destroy() { b.destroyed = true }

type fakeDevice struct {
	buffers []*fakeBuffer
	fail    bool
}

func (d *fakeDevice) CreateBuffer(size uint64) (NativeBuffer, error) {
	if d.fail {
		return nil, errFake
	}
	b := &fakeBuffer{size: size, data: make([]byte, size)}
	d.buffers = append(d.buffers, b)
	return b, nil
}

// timeline is a fence primitive whose progress the test controls.
type timeline struct {
	mu      sync.Mutex
	retired uint64
}

func (t *timeline) Reached(v uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.retired >= v
}

func (t *timeline) WaitFor(v uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.retired = max(t.retired, v)
}

func (t *timeline) Destroy() {}

type signaler struct{}

func (signaler) Signal(fence.Primitive, uint64) error { return nil }

func inFlight(t *testing.T) (*fence.Fence, *timeline) {
	t.Helper()
	tl := &timeline{}
	f := fence.New(tl)
	if _, err := f.Signal(signaler{}); err != nil {
		t.Fatalf("Signal: %v", err)
	}
	return f, tl
}

func TestAlignUp(t *testing.T) {
	tests := []struct {
		size, align, want uint64
	}{
		{1, 256, 256},
		{256, 256, 256},
		{257, 256, 512},
		{0, 256, 0},
		{100, 16, 112},
	}
	for _, tt := range tests {
		if got := AlignUp(tt.size, tt.align); got != tt.want {
			t.Errorf("AlignUp(%d, %d) = %d, want %d", tt.size, tt.align, got, tt.want)
		}
	}
}

func TestAcquireAlignsAndBumps(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, Options{})

	if r.BlockSize() != DefaultBlockSize || r.Alignment() != DefaultAlignment {
		t.Fatalf("defaults = %d/%d", r.BlockSize(), r.Alignment())
	}

	a, err := r.Acquire(1)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := r.Acquire(300)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a.Offset != 0 || a.Size != 256 {
		t.Errorf("a = %d+%d, want 0+256", a.Offset, a.Size)
	}
	if b.Offset != 256 || b.Size != 512 {
		t.Errorf("b = %d+%d, want 256+512", b.Offset, b.Size)
	}
	if a.Block != b.Block {
		t.Error("sequential small allocations should share a block")
	}
	if len(dev.buffers) != 1 {
		t.Errorf("buffers = %d, want 1", len(dev.buffers))
	}
}

func TestAcquireZeroSize(t *testing.T) {
	r := New(&fakeDevice{}, Options{})
	if _, err := r.Acquire(0); !errors.Is(err, ErrZeroSize) {
		t.Errorf("Acquire(0) = %v, want ErrZeroSize", err)
	}
}

func TestAcquireFillsBlockThenRollsOver(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, Options{BlockSize: 1024})

	var blocks []*Block
	for range 5 {
		a, err := r.Acquire(256)
		if err != nil {
			t.Fatalf("Acquire: %v", err)
		}
		blocks = append(blocks, a.Block)
	}
	if blocks[0] != blocks[3] {
		t.Error("first four allocations should share a block")
	}
	if blocks[4] == blocks[0] {
		t.Error("fifth allocation should roll over to a new block")
	}
	st := r.Stats()
	if st.Blocks.Used != 1 || st.Blocks.Created != 2 {
		t.Errorf("stats = %s", st)
	}
}

func TestOversizedRequestGrowsBlock(t *testing.T) {
	var logs bytes.Buffer
	dev := &fakeDevice{}
	r := New(dev, Options{Logger: slog.New(slog.NewTextHandler(&logs, nil))})

	// Two default-size blocks end up on the free list.
	for range 2 {
		if _, err := r.Acquire(DefaultBlockSize); err != nil {
			t.Fatalf("Acquire: %v", err)
		}
	}
	if n := r.UpdateStatus(); n != 2 {
		t.Fatalf("UpdateStatus = %d, want 2", n)
	}

	a, err := r.Acquire(128 << 10)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if a.Block.Capacity() < 128<<10 {
		t.Errorf("block capacity = %d, want >= 128 KiB", a.Block.Capacity())
	}
	if a.Offset != 0 {
		t.Errorf("offset = %d, want 0", a.Offset)
	}

	st := r.Stats()
	if st.Blocks.Free != 2 {
		t.Errorf("free = %d, want default blocks untouched", st.Blocks.Free)
	}
	if st.Blocks.Created != 3 || st.Oversized != 1 {
		t.Errorf("stats = %s", st)
	}
	if !strings.Contains(logs.String(), "level=WARN") {
		t.Errorf("expected a capacity warning, got %q", logs.String())
	}

	// The grown block is full, so the next request retires it and takes a
	// free default block.
	b, err := r.Acquire(16)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if b.Block == a.Block {
		t.Error("small request placed in the full grown block")
	}
	if st := r.Stats().Blocks; st.Used != 1 || st.Free != 1 || st.Created != 3 {
		t.Errorf("blocks after next acquire = %s", st)
	}
}

func TestUpdateStatusWaitsForFences(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, Options{})

	a, err := r.Acquire(64)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	f, tl := inFlight(t)
	a.Block.AttachFence(f)

	if n := r.UpdateStatus(); n != 0 {
		t.Fatalf("UpdateStatus with fence pending = %d, want 0", n)
	}
	if st := r.Stats(); st.Blocks.Used != 1 || st.Blocks.HasCurrent {
		t.Errorf("stats = %s", st)
	}

	// The next allocation cannot reuse the retired block.
	b, err := r.Acquire(64)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if b.Block == a.Block {
		t.Fatal("allocation reused a block still in flight")
	}

	tl.WaitFor(1)
	a.Block.DetachFence(f)
	if n := r.UpdateStatus(); n != 2 {
		t.Errorf("UpdateStatus = %d, want 2", n)
	}
	c, err := r.Acquire(64)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c.Block != a.Block {
		t.Error("expected the oldest free block to be reused")
	}
	if len(dev.buffers) != 2 {
		t.Errorf("buffers = %d, want 2", len(dev.buffers))
	}
}

func TestUploadWritesData(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, Options{})

	if _, err := r.Acquire(16); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	payload := []byte{1, 2, 3, 4}
	a, err := r.Upload(payload)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	buf := dev.buffers[0]
	if !bytes.Equal(buf.data[a.Offset:a.Offset+4], payload) {
		t.Errorf("data = %v", buf.data[a.Offset:a.Offset+4])
	}

	if err := a.Write(make([]byte, a.Size+1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("oversized Write = %v, want ErrOverflow", err)
	}
}

func TestCreateFailure(t *testing.T) {
	r := New(&fakeDevice{fail: true}, Options{})
	_, err := r.Acquire(64)
	if !errors.Is(err, ErrCreateBuffer) || !errors.Is(err, errFake) {
		t.Errorf("Acquire = %v, want ErrCreateBuffer wrapping errFake", err)
	}
}

func TestInvalidAlignmentFallsBack(t *testing.T) {
	r := New(&fakeDevice{}, Options{Alignment: 300})
	if r.Alignment() != DefaultAlignment {
		t.Errorf("Alignment = %d, want %d", r.Alignment(), DefaultAlignment)
	}
}

func TestDestroyReleasesFreeBlocks(t *testing.T) {
	dev := &fakeDevice{}
	r := New(dev, Options{BlockSize: 256})

	a, _ := r.Acquire(256)
	b, _ := r.Acquire(256)
	f, _ := inFlight(t)
	b.Block.AttachFence(f)
	r.UpdateStatus()
	r.Destroy()

	if !a.Block.Native().(*fakeBuffer).destroyed {
		t.Error("free block should be destroyed")
	}
	if b.Block.Native().(*fakeBuffer).destroyed {
		t.Error("in-flight block must survive Destroy")
	}
}
