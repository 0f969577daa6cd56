// Package sim is a deterministic in-process GPU for tests and the demo.
//
// The simulated queue executes in submission order. Fence signals are
// queued and retire only when the GPU advances: explicitly through Step or
// Flush, automatically once more than Options.Latency signals are pending,
// or on demand when the CPU waits on a value. This makes CPU/GPU overlap
// fully observable without timing dependencies.
//
// Every native object creation and write is counted, so tests can assert
// how often descriptors were written or buffers were created.
//
// Thread Safety: all GPU methods are safe for concurrent use, so tests may
// retire work from another goroutine while the frame loop blocks.
package sim
