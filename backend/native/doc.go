// Package native runs gpuframe on a real GPU through the gogpu/wgpu HAL.
//
// The mapping onto HAL objects:
//
//	fence.Primitive      hal.Fence (timeline value, polled with Device.Wait)
//	cmdlist.Recorder     hal.CommandEncoder; passes open lazily on draw/dispatch
//	cmdlist.Queue        hal.Queue; command buffers are batched until the
//	                     fence signal so each Execute is one Queue.Submit
//	descriptor heap      slot table of hal.BindGroup, one group per table
//	constant buffer      hal.Buffer with Uniform|CopyDst usage, written
//	                     through Queue.WriteBuffer
//
// HAL has no separate command allocator; each encoder owns its memory, so
// Allocator is a bookkeeping object only.
//
// A Backend is opened on the default Vulkan adapter (unless built with
// -tags nogpu), on an existing HAL device with NewFromHAL, or on a host
// application's device through NewFromProvider.
package native
