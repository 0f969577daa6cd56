package native

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/gpuframe/descriptor"
)

// heap stores one bind group per written table, indexed by the slot the
// table starts at. Slots inside a table stay nil.
type heap struct {
	b      *Backend
	typ    descriptor.HeapType
	groups []hal.BindGroup
}

// CreateHeap allocates the slot table for a descriptor heap. Bind groups are
// created on write.
func (b *Backend) CreateHeap(t descriptor.HeapType, capacity uint32) (descriptor.NativeHeap, error) {
	return &heap{b: b, typ: t, groups: make([]hal.BindGroup, capacity)}, nil
}

// WriteDescriptors builds a bind group for bindings and stores it at
// offset, replacing any group previously written there.
func (b *Backend) WriteDescriptors(nh descriptor.NativeHeap, offset uint32, bindings []descriptor.Binding) error {
	h, ok := nh.(*heap)
	if !ok || h.b != b {
		return fmt.Errorf("%w: heap %T", ErrForeignObject, nh)
	}
	if uint64(offset)+uint64(len(bindings)) > uint64(len(h.groups)) {
		return fmt.Errorf("%w: %d+%d > %d", ErrSlotRange, offset, len(bindings), len(h.groups))
	}
	if len(bindings) == 0 {
		return nil
	}

	layout, err := b.layoutFor(bindings)
	if err != nil {
		return err
	}
	entries := make([]gputypes.BindGroupEntry, len(bindings))
	for i, bd := range bindings {
		entries[i] = gputypes.BindGroupEntry{
			Binding: uint32(i), //nolint:gosec // G115: i < MaxTableBindings
			Resource: gputypes.BufferBinding{
				Buffer: bd.Resource,
				Offset: bd.Offset,
				Size:   bd.Size,
			},
		}
	}
	group, err := b.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   fmt.Sprintf("gpuframe_%s_table_%d", h.typ, offset),
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("native: create bind group: %w", err)
	}
	if old := h.groups[offset]; old != nil {
		b.device.DestroyBindGroup(old)
	}
	h.groups[offset] = group
	return nil
}

// group returns the bind group written at r.
func (b *Backend) group(r descriptor.Region) (hal.BindGroup, error) {
	if r.Heap == nil {
		return nil, fmt.Errorf("%w: empty region", ErrSlotRange)
	}
	h, ok := r.Heap.Native().(*heap)
	if !ok || h.b != b {
		return nil, fmt.Errorf("%w: heap %T", ErrForeignObject, r.Heap.Native())
	}
	if int(r.Offset) >= len(h.groups) || h.groups[r.Offset] == nil {
		return nil, fmt.Errorf("%w: no table at slot %d", ErrSlotRange, r.Offset)
	}
	return h.groups[r.Offset], nil
}

// Destroy releases every bind group in the heap.
func (h *heap) Destroy() {
	for i, g := range h.groups {
		if g != nil {
			h.b.device.DestroyBindGroup(g)
			h.groups[i] = nil
		}
	}
}

// layoutFor returns the cached layout for the binding kinds of a table.
func (b *Backend) layoutFor(bindings []descriptor.Binding) (hal.BindGroupLayout, error) {
	key := make([]byte, len(bindings))
	entries := make([]gputypes.BindGroupLayoutEntry, len(bindings))
	for i, bd := range bindings {
		typ, err := bufferBindingType(bd.Kind)
		if err != nil {
			return nil, err
		}
		key[i] = byte(bd.Kind)
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(i), //nolint:gosec // G115: i < MaxTableBindings
			Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment | gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}
	if l, ok := b.layouts.Get(string(key)); ok {
		return l, nil
	}
	l, err := b.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   fmt.Sprintf("gpuframe_layout_%d", len(bindings)),
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("native: create bind group layout: %w", err)
	}
	b.layouts.Set(string(key), l)
	return l, nil
}

func bufferBindingType(k descriptor.BindingKind) (gputypes.BufferBindingType, error) {
	switch k {
	case descriptor.ConstantBufferView:
		return gputypes.BufferBindingTypeUniform, nil
	case descriptor.ShaderResourceView:
		return gputypes.BufferBindingTypeReadOnlyStorage, nil
	case descriptor.UnorderedAccessView:
		return gputypes.BufferBindingTypeStorage, nil
	default:
		return gputypes.BufferBindingTypeUniform, fmt.Errorf("%w: %s", ErrUnsupportedBinding, k)
	}
}
