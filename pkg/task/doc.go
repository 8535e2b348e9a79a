// Package task implements deferred per-frame render tasks.
//
// A [Task] is the unit of work "produce a rendered image for box B at
// relative frame F". Its life cycle is a small state machine:
//
//	Created ─▶ Queued ─▶ Processing ─▶ Finished
//	   │          │           │
//	   └──────────┴───────────┴──────▶ Canceled
//
// # Capture
//
// [Task.Queue] runs on the caller's goroutine. It asks the owning box to
// fill in the task's parameters ([Owner.SetupRenderData]), applies the
// registered [Customizer] values in order, and signals the box that preview
// data is available. Everything a worker later needs is captured here; a
// worker never reads live box state.
//
// # Dependencies
//
// A task may depend on other tasks ([Task.DependOn], [Task.AddUnderlay]).
// It keeps a pending count and is handed to the ready callback exactly once,
// when the count reaches zero. Callbacks registered with [Task.AddDependent]
// are one-shot: each fires once, on finish or cancel, and is then dropped.
// Registering on a task that is already terminal fires immediately.
// A canceled dependency still releases its dependents; they proceed without
// its output.
//
// # Ownership
//
// Tasks refer to their box through a [Handle], a (resolver, id) pair that is
// validated whenever it is used. A box that has been removed simply stops
// resolving; copies and updates then become no-ops.
package task
