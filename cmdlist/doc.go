// Package cmdlist implements the command list lifecycle and its pool.
//
// A CommandList moves through a fixed state machine:
//
//	Initial ──Prepare──▶ ReadyToRecord ──Close──▶ Closed
//	   ▲                      ▲                     │
//	   │                      │ Prepare             │ Manager.Execute
//	   │                      │                     ▼
//	   └──(new list)        Finish ◀──fence──── Execute
//
// Recording calls are legal only in ReadyToRecord. Execute and Finish are
// driven by the Manager: Execute submits the list and signals its private
// fence, Finish happens during Update once that fence has retired. On Finish
// every resource registered with SetUsed is detached from the list's fence
// and the list returns to the free queue of its type.
//
// The Manager buckets in-flight lists by swapchain image index. Sync selects
// the bucket for the frame being built and, when asked to wait, blocks until
// the previous occupant of that image index has retired. This bounds how far
// the CPU can run ahead of the GPU.
package cmdlist
