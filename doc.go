// Package gpuframe manages the lifecycle of GPU command lists and the
// transient memory they reference.
//
// # Overview
//
// A GPU consumes work asynchronously. Memory referenced by recorded commands
// must stay untouched until the GPU has executed them, and the CPU must not
// run unboundedly ahead of the GPU. gpuframe tracks both with fences: every
// command list carries a fence that is signalled when the list is submitted,
// and every resource the list references records that fence until the list
// retires.
//
// # Quick Start
//
//	gpu := sim.New(sim.Options{})
//	dev, err := gpuframe.New(gpu, gpuframe.WithConfig(cfg))
//	if err != nil {
//		return err
//	}
//	defer dev.Destroy()
//
//	for range frames {
//		if err := dev.BeginFrame(); err != nil {
//			return err
//		}
//		l, _ := dev.CurrentCommandList()
//		_ = dev.BindConstants(0, transform)
//		_ = l.Draw(3, 1, 0, 0)
//		if err := dev.PresentFrame(); err != nil {
//			return err
//		}
//	}
//
// # Architecture
//
// The module is organized into:
//   - fence: Fence and the fence set (Tracker) behind every tracked resource
//   - cmdlist: the CommandList state machine and its pooling Manager
//   - descriptor: ring-allocated descriptor heaps and the table cache
//   - cbuffer: the constant buffer ring allocator
//   - deleter: deferred destruction gated on fence completion
//   - backend: backend registry; backend/sim and backend/native implement it
//
// Device ties them together into a frame loop.
//
// # Frame Lifecycle
//
//	BeginFrame ──▶ record (Bind*, Draw, Submit) ──▶ PresentFrame
//	    │                                               │
//	    └── Sync(image, vsync), Update ◀────────────────┘
//	                                     UpdateRegions, UpdateStatus, deleter
//
// Only BeginFrame with vsync, Submit(true), WaitIdle and Destroy block.
package gpuframe

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
