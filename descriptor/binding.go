package descriptor

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
)

// MaxTableBindings is the largest number of bindings in one table.
const MaxTableBindings = 16

// BindingKind is the kind of view a binding writes.
type BindingKind uint8

const (
	ConstantBufferView BindingKind = iota + 1
	ShaderResourceView
	UnorderedAccessView
	SamplerState
	RenderTargetView
	DepthStencilView
)

// String returns the binding kind name.
func (k BindingKind) String() string {
	switch k {
	case ConstantBufferView:
		return "CBV"
	case ShaderResourceView:
		return "SRV"
	case UnorderedAccessView:
		return "UAV"
	case SamplerState:
		return "Sampler"
	case RenderTargetView:
		return "RTV"
	case DepthStencilView:
		return "DSV"
	default:
		return fmt.Sprintf("BindingKind(%d)", k)
	}
}

// Binding describes one descriptor to write.
// Resource is the backend's native handle for the viewed object.
type Binding struct {
	Kind     BindingKind
	Resource uintptr
	Offset   uint64
	Size     uint64
}

// bindingBytes is the size of one canonical binding encoding.
const bindingBytes = 1 + 8 + 8 + 8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// contentHash hashes the heap type and binding set. The CRC is folded into
// the upper word together with the binding count so tables of different
// length never share a key by accident.
func contentHash(t HeapType, bindings []Binding) uint64 {
	var buf [1 + MaxTableBindings*bindingBytes]byte
	buf[0] = byte(t)
	n := 1
	for _, b := range bindings {
		buf[n] = byte(b.Kind)
		binary.LittleEndian.PutUint64(buf[n+1:], uint64(b.Resource))
		binary.LittleEndian.PutUint64(buf[n+9:], b.Offset)
		binary.LittleEndian.PutUint64(buf[n+17:], b.Size)
		n += bindingBytes
	}
	crc := crc32.Checksum(buf[:n], castagnoli)
	return uint64(len(bindings))<<32 | uint64(crc)
}
