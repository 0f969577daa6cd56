// Package fence tracks GPU completion for CPU-side resource lifetimes.
//
// A Fence wraps a backend timeline primitive: the CPU picks a new target
// value, asks the queue to signal it once all prior work has finished, and
// later polls or blocks on that value. A Tracker records which fences still
// protect a resource; the resource may be recycled or destroyed only when
// its tracker reports it is no longer in use.
//
// Typical flow:
//
//	f := fence.New(prim)
//	res.AttachFence(f)          // resource read by work guarded by f
//	f.Signal(queue)             // after submitting that work
//	...
//	if f.Completed() {
//	    res.DetachFence(f)
//	}
//
// Waits are unbounded. A GPU that never retires a signalled value is a fatal
// condition for the caller, not a timeout.
package fence
