package cmdlist

import (
	"errors"
	"fmt"
)

// Command list errors.
var (
	// ErrNotRecording is returned when a recording call is made on a list
	// that is not in the ReadyToRecord state.
	ErrNotRecording = errors.New("cmdlist: list not in recording state")

	// ErrNotClosed is returned when a list that is not Closed is executed.
	ErrNotClosed = errors.New("cmdlist: list not closed")

	// ErrWrongState is returned for any other illegal state transition.
	ErrWrongState = errors.New("cmdlist: illegal state transition")

	// ErrDestroyInFlight is returned when a list is destroyed outside the
	// Initial or Finish states.
	ErrDestroyInFlight = errors.New("cmdlist: list destroyed while in flight")

	// ErrCreateFailed wraps backend failures creating a list, its
	// allocator or its fence.
	ErrCreateFailed = errors.New("cmdlist: create failed")

	// ErrInvalidType is returned for an unknown list Type.
	ErrInvalidType = errors.New("cmdlist: invalid list type")

	// ErrForeignList is returned when a list is handed to a Manager that
	// did not create it, or after it was destroyed.
	ErrForeignList = errors.New("cmdlist: list not owned by manager")

	// ErrSubmit wraps queue submission failures.
	ErrSubmit = errors.New("cmdlist: submit failed")
)

// Type selects the queue class a list records for.
type Type uint8

const (
	Direct Type = iota
	Bundle
	Compute
	Copy

	typeCount
)

// Types lists every list type in order.
var Types = [typeCount]Type{Direct, Bundle, Compute, Copy}

// String returns the type name.
func (t Type) String() string {
	switch t {
	case Direct:
		return "Direct"
	case Bundle:
		return "Bundle"
	case Compute:
		return "Compute"
	case Copy:
		return "Copy"
	default:
		return fmt.Sprintf("Type(%d)", t)
	}
}

func (t Type) valid() bool { return t < typeCount }

// State is the lifecycle state of a CommandList.
type State uint8

const (
	// Initial is the state of a freshly created list.
	Initial State = iota
	// ReadyToRecord accepts recording calls.
	ReadyToRecord
	// Closed lists are finalized and may be executed.
	Closed
	// Execute lists are submitted and owned by the GPU.
	Execute
	// Finish lists have retired and may be prepared again.
	Finish
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Initial:
		return "Initial"
	case ReadyToRecord:
		return "ReadyToRecord"
	case Closed:
		return "Closed"
	case Execute:
		return "Execute"
	case Finish:
		return "Finish"
	default:
		return fmt.Sprintf("State(%d)", s)
	}
}
