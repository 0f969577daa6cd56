// Package cbuffer stages per-draw constant data in pooled GPU buffers.
//
// RingAllocator hands out aligned byte ranges by bumping a cursor in the
// current block. A block that cannot fit a request is retired; UpdateStatus
// returns retired blocks to the free list once no in-flight command list
// references them. Requests larger than the default block size are
// satisfied by a block grown to fit, and logged as a capacity warning.
//
// Thread Safety: RingAllocator is safe for concurrent use.
package cbuffer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gogpu/gpuframe/fence"
	"github.com/gogpu/gpuframe/internal/logging"
	"github.com/gogpu/gpuframe/internal/ring"
)

// Default ring parameters.
const (
	// DefaultBlockSize is the capacity of a regular constant buffer block.
	DefaultBlockSize = 64 << 10

	// DefaultAlignment is the minimum constant buffer placement alignment.
	DefaultAlignment = 256
)

// Constant buffer errors.
var (
	// ErrZeroSize is returned for empty requests.
	ErrZeroSize = errors.New("cbuffer: zero-size allocation")

	// ErrCreateBuffer wraps backend buffer creation failures.
	ErrCreateBuffer = errors.New("cbuffer: create buffer failed")

	// ErrOverflow is returned when more data is written than was allocated.
	ErrOverflow = errors.New("cbuffer: write exceeds allocation")
)

// NativeBuffer is a CPU-writable GPU buffer.
type NativeBuffer interface {
	// Write uploads data at offset.
	Write(offset uint64, data []byte) error

	// Handle returns the native identity used in descriptor bindings.
	Handle() uintptr

	// Destroy releases the buffer.
	Destroy()
}

// Device creates constant buffer blocks.
type Device interface {
	CreateBuffer(size uint64) (NativeBuffer, error)
}

// Block is one pooled buffer. Its embedded Tracker records the command lists
// that read from it.
type Block struct {
	fence.Tracker

	id     uint64
	size   uint64
	native NativeBuffer
}

// ID returns a serial number unique within the owning allocator.
func (b *Block) ID() uint64 { return b.id }

// Capacity returns the block size in bytes.
func (b *Block) Capacity() uint64 { return b.size }

// Native returns the backend buffer.
func (b *Block) Native() NativeBuffer { return b.native }

// Allocation is an aligned byte range inside a Block.
type Allocation struct {
	Block  *Block
	Offset uint64
	Size   uint64
}

// Write uploads data to the start of the allocation.
func (a Allocation) Write(data []byte) error {
	if uint64(len(data)) > a.Size {
		return fmt.Errorf("%w: %d > %d", ErrOverflow, len(data), a.Size)
	}
	return a.Block.native.Write(a.Offset, data)
}

// AlignUp rounds size up to a multiple of align, which must be a power of two.
func AlignUp(size, align uint64) uint64 {
	return (size + align - 1) &^ (align - 1)
}

// Options configures a RingAllocator.
type Options struct {
	// BlockSize is the default block capacity (0 uses DefaultBlockSize).
	BlockSize uint64

	// Alignment is the placement alignment, a power of two (0 uses
	// DefaultAlignment).
	Alignment uint64

	// Logger receives capacity warnings. Nil is silent.
	Logger *slog.Logger
}

// RingAllocator is a bump/ring allocator over constant buffer blocks.
type RingAllocator struct {
	mu    sync.Mutex
	dev   Device
	pool  *ring.Pool[*Block]
	align uint64
	log   *slog.Logger

	nextID    uint64
	allocs    uint64
	bytes     uint64
	oversized uint64
}

// New creates a ring allocator over dev.
func New(dev Device, opts Options) *RingAllocator {
	log := logging.OrNop(opts.Logger)

	align := opts.Alignment
	if align == 0 {
		align = DefaultAlignment
	}
	if align&(align-1) != 0 {
		log.Warn("cbuffer: alignment is not a power of two, using default",
			"alignment", align, "default", DefaultAlignment)
		align = DefaultAlignment
	}
	blockSize := opts.BlockSize
	if blockSize == 0 {
		blockSize = DefaultBlockSize
	}

	r := &RingAllocator{dev: dev, align: align, log: log}
	r.pool = ring.New(AlignUp(blockSize, align), r.createBlock)
	return r
}

// createBlock runs with r.mu held.
func (r *RingAllocator) createBlock(size uint64) (*Block, error) {
	native, err := r.dev.CreateBuffer(size)
	if err != nil {
		r.log.Error("cbuffer: buffer creation failed", "size", size, "err", err)
		return nil, fmt.Errorf("%w: %d bytes: %w", ErrCreateBuffer, size, err)
	}
	r.nextID++
	r.log.Debug("cbuffer: block created", "id", r.nextID, "size", size)
	return &Block{id: r.nextID, size: size, native: native}, nil
}

// Alignment returns the placement alignment.
func (r *RingAllocator) Alignment() uint64 { return r.align }

// BlockSize returns the default block capacity.
func (r *RingAllocator) BlockSize() uint64 { return r.pool.BlockSize() }

// Acquire returns an aligned range of at least size bytes. It never blocks.
func (r *RingAllocator) Acquire(size uint64) (Allocation, error) {
	if size == 0 {
		return Allocation{}, ErrZeroSize
	}
	aligned := AlignUp(size, r.align)

	r.mu.Lock()
	defer r.mu.Unlock()

	if aligned > r.pool.BlockSize() {
		r.oversized++
		r.log.Warn("cbuffer: request exceeds block size, growing block",
			"size", aligned, "block_size", r.pool.BlockSize())
	}

	blk, off, err := r.pool.Allocate(aligned)
	if err != nil {
		return Allocation{}, err
	}
	r.allocs++
	r.bytes += aligned
	return Allocation{Block: blk, Offset: off, Size: aligned}, nil
}

// Upload acquires a range for data and writes it.
func (r *RingAllocator) Upload(data []byte) (Allocation, error) {
	a, err := r.Acquire(uint64(len(data)))
	if err != nil {
		return Allocation{}, err
	}
	if err := a.Write(data); err != nil {
		return Allocation{}, fmt.Errorf("cbuffer: upload: %w", err)
	}
	return a, nil
}

// UpdateStatus retires the current block and returns blocks no longer
// referenced by in-flight work to the free list. It returns the number of
// blocks reclaimed.
func (r *RingAllocator) UpdateStatus() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := r.pool.Reclaim(nil)
	if n > 0 {
		r.log.Debug("cbuffer: blocks reclaimed", "count", n)
	}
	return n
}

// Destroy releases free blocks. Blocks still in use are kept until a later
// UpdateStatus frees them and Destroy is called again.
func (r *RingAllocator) Destroy() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pool.DrainFree(func(b *Block) { b.native.Destroy() })
}

// Stats describes allocator usage.
type Stats struct {
	Blocks    ring.Stats
	Allocs    uint64
	Bytes     uint64
	Oversized uint64
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("allocs=%d bytes=%d oversized=%d {%s}", s.Allocs, s.Bytes, s.Oversized, s.Blocks)
}

// Stats returns a snapshot of allocator usage.
func (r *RingAllocator) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Blocks:    r.pool.Stats(),
		Allocs:    r.allocs,
		Bytes:     r.bytes,
		Oversized: r.oversized,
	}
}
