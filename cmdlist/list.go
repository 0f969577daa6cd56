package cmdlist

import (
	"fmt"

	"github.com/gogpu/gpuframe/fence"
	"github.com/gogpu/gpuframe/internal/arena"
)

// CommandList is a recordable unit of GPU work with an explicit lifecycle.
//
// Lifecycle:
//  1. Acquire from a Manager (state Initial or Finish)
//  2. Prepare, record, Close
//  3. Manager.Execute submits it; Manager.Update recycles it once its
//     fence retires
//
// CommandList is NOT safe for concurrent use. Record each list from a
// single goroutine.
type CommandList struct {
	handle   arena.Handle
	typ      Type
	state    State
	rec      Recorder
	alloc    Allocator
	ownAlloc bool
	fence    *fence.Fence

	used    map[fence.Resource]struct{}
	pending []Barrier

	pipeline Pipeline
	commands int
	bucket   uint32
	value    uint64
}

func newCommandList(t Type, rec Recorder, alloc Allocator, own bool, f *fence.Fence) *CommandList {
	return &CommandList{
		typ:      t,
		state:    Initial,
		rec:      rec,
		alloc:    alloc,
		ownAlloc: own,
		fence:    f,
		used:     make(map[fence.Resource]struct{}),
	}
}

// Handle returns the list's handle in its Manager.
func (l *CommandList) Handle() arena.Handle { return l.handle }

// Type returns the list type.
func (l *CommandList) Type() Type { return l.typ }

// State returns the lifecycle state.
func (l *CommandList) State() State { return l.state }

// Fence returns the private fence signalled after the list executes.
func (l *CommandList) Fence() *fence.Fence { return l.fence }

// Recorder returns the native command list.
func (l *CommandList) Recorder() Recorder { return l.rec }

// UsedResources returns the number of resources registered with SetUsed.
func (l *CommandList) UsedResources() int { return len(l.used) }

// Commands returns the number of commands recorded since Prepare.
func (l *CommandList) Commands() int { return l.commands }

// SubmittedValue returns the fence value signalled by the last Execute.
func (l *CommandList) SubmittedValue() uint64 { return l.value }

// Prepare resets the list for recording: Initial|Finish -> ReadyToRecord.
// An owned allocator is reset with it; shared allocators are reset by the
// Manager once no list of the type is outstanding.
func (l *CommandList) Prepare() error {
	if l.state != Initial && l.state != Finish {
		return fmt.Errorf("%w: prepare in state %s", ErrWrongState, l.state)
	}
	if l.ownAlloc {
		if err := l.alloc.Reset(); err != nil {
			return fmt.Errorf("cmdlist: reset allocator: %w", err)
		}
	}
	if err := l.rec.Reset(l.alloc); err != nil {
		return fmt.Errorf("cmdlist: reset %s list: %w", l.typ, err)
	}
	l.pending = l.pending[:0]
	l.pipeline = nil
	l.commands = 0
	l.state = ReadyToRecord
	return nil
}

// Close finalizes recording: ReadyToRecord -> Closed.
// Pending transitions are flushed first.
func (l *CommandList) Close() error {
	if err := l.checkRecording("close"); err != nil {
		return err
	}
	l.flushBarriers()
	if err := l.rec.Close(); err != nil {
		return fmt.Errorf("cmdlist: close %s list: %w", l.typ, err)
	}
	l.state = Closed
	return nil
}

// SetUsed registers res as referenced by this list's commands. The list's
// fence is attached to res until the list finishes. Registering the same
// resource again is a no-op.
func (l *CommandList) SetUsed(res fence.Resource) error {
	if l.state != ReadyToRecord && l.state != Closed {
		return fmt.Errorf("%w: set used in state %s", ErrWrongState, l.state)
	}
	if res == nil {
		return nil
	}
	if _, ok := l.used[res]; ok {
		return nil
	}
	l.used[res] = struct{}{}
	res.AttachFence(l.fence)
	return nil
}

// IsUsing reports whether res was registered with SetUsed.
func (l *CommandList) IsUsing(res fence.Resource) bool {
	_, ok := l.used[res]
	return ok
}

// markExecuted moves a submitted list to Execute.
func (l *CommandList) markExecuted(bucket uint32, value uint64) {
	l.state = Execute
	l.bucket = bucket
	l.value = value
}

// finish detaches every used resource and moves the list to Finish.
func (l *CommandList) finish() {
	for res := range l.used {
		res.DetachFence(l.fence)
	}
	clear(l.used)
	l.pending = l.pending[:0]
	l.pipeline = nil
	l.state = Finish
}

// destroy releases the native objects. Legal only in Initial or Finish.
func (l *CommandList) destroy() error {
	if l.state != Initial && l.state != Finish {
		return fmt.Errorf("%w: state %s", ErrDestroyInFlight, l.state)
	}
	l.rec.Destroy()
	if l.ownAlloc {
		l.alloc.Destroy()
	}
	l.fence.Destroy()
	return nil
}

func (l *CommandList) checkRecording(op string) error {
	if l.state != ReadyToRecord {
		return fmt.Errorf("%w: %s in state %s", ErrNotRecording, op, l.state)
	}
	return nil
}
