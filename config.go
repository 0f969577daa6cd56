package gpuframe

import (
	"fmt"
	"io"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/gpuframe/cbuffer"
	"github.com/gogpu/gpuframe/cmdlist"
	"github.com/gogpu/gpuframe/descriptor"
)

// Default configuration values.
const (
	// DefaultBufferCount is the default swapchain length and number of
	// frames the CPU may run ahead of the GPU.
	DefaultBufferCount = cmdlist.DefaultBufferCount

	// MaxBufferCount bounds BufferCount.
	MaxBufferCount = 16

	// DefaultConstantBlockSize is the default constant buffer block size.
	DefaultConstantBlockSize = cbuffer.DefaultBlockSize

	// DefaultConstantAlignment is the default constant buffer alignment.
	DefaultConstantAlignment = cbuffer.DefaultAlignment

	// DefaultTableCacheLimit is the default descriptor table cache size.
	DefaultTableCacheLimit = descriptor.DefaultCacheLimit
)

// Config holds the tunables of a Device. It maps one to one onto a TOML
// file:
//
//	buffer_count = 3
//	vsync = true
//	shared_allocators = false
//	constant_block_size = 65536
//	constant_alignment = 256
//	table_cache_limit = 4096
//
//	[heaps]
//	shader_resource = 2048
//	sampler = 2048
//	render_target = 512
//	depth_stencil = 128
type Config struct {
	// BufferCount is the swapchain length when no Presenter decides it.
	BufferCount int `toml:"buffer_count"`

	// VSync makes BeginFrame wait for the frame that last used the
	// acquired image to retire.
	VSync bool `toml:"vsync"`

	// SharedAllocators makes command lists of a type share one allocator.
	SharedAllocators bool `toml:"shared_allocators"`

	// ConstantBlockSize is the regular constant buffer block size in bytes.
	ConstantBlockSize uint64 `toml:"constant_block_size"`

	// ConstantAlignment is the constant buffer placement alignment.
	ConstantAlignment uint64 `toml:"constant_alignment"`

	// TableCacheLimit bounds the descriptor table cache. Negative disables
	// the bound.
	TableCacheLimit int `toml:"table_cache_limit"`

	// Heaps sets descriptor heap capacities per type.
	Heaps descriptor.Capacities `toml:"heaps"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		BufferCount:       DefaultBufferCount,
		VSync:             true,
		ConstantBlockSize: DefaultConstantBlockSize,
		ConstantAlignment: DefaultConstantAlignment,
		TableCacheLimit:   DefaultTableCacheLimit,
		Heaps:             descriptor.DefaultCapacities(),
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.BufferCount < 1 || c.BufferCount > MaxBufferCount:
		return fmt.Errorf("%w: buffer_count %d not in [1, %d]", ErrInvalidConfig, c.BufferCount, MaxBufferCount)
	case c.ConstantAlignment == 0 || c.ConstantAlignment&(c.ConstantAlignment-1) != 0:
		return fmt.Errorf("%w: constant_alignment %d is not a power of two", ErrInvalidConfig, c.ConstantAlignment)
	case c.ConstantBlockSize < c.ConstantAlignment:
		return fmt.Errorf("%w: constant_block_size %d smaller than alignment %d",
			ErrInvalidConfig, c.ConstantBlockSize, c.ConstantAlignment)
	}
	for _, t := range descriptor.HeapTypes {
		if c.Heaps.Of(t) < descriptor.MaxTableBindings {
			return fmt.Errorf("%w: heaps.%s capacity %d below %d",
				ErrInvalidConfig, t, c.Heaps.Of(t), descriptor.MaxTableBindings)
		}
	}
	return nil
}

// LoadConfig reads a TOML file over DefaultConfig and validates the result.
// Unknown keys are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("gpuframe: load config %s: %w", path, err)
	}
	return finishDecode(cfg, md)
}

// DecodeConfig reads TOML from r over DefaultConfig and validates the result.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.NewDecoder(r).Decode(&cfg)
	if err != nil {
		return Config{}, fmt.Errorf("gpuframe: decode config: %w", err)
	}
	return finishDecode(cfg, md)
}

func finishDecode(cfg Config, md toml.MetaData) (Config, error) {
	if keys := md.Undecoded(); len(keys) > 0 {
		names := make([]string, len(keys))
		for i, k := range keys {
			names[i] = k.String()
		}
		return Config{}, fmt.Errorf("%w: unknown keys %s", ErrInvalidConfig, strings.Join(names, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(c)
}
