// Package runner implements the quench test scheduler: registration of
// modules and tests, the cooperative run loop, the assertion recorder, and
// the lifecycle event bus.
//
// ARCHITECTURE:
//
// Single-Scheduler Run Loop:
// Exactly one test is in flight at a time. The run loop drains a FIFO
// queue of registered test units one by one, on a single goroutine. There
// is no parallel execution of test bodies.
//
// Test Execution Flow:
// 1. Registration calls append test units to the queue (safe mid-run)
// 2. Runner.Run() advances a read cursor over the queue
// 3. Each unit runs its module setup, its body, then module teardown
// 4. Assertion outcomes fold into per-test, per-module, and global tallies
// 5. Lifecycle events fire synchronously at each transition
//
// Reentrancy:
// A running test may register further modules and tests. Appends go to the
// tail of the live queue and are picked up by the same run; the read cursor
// is never invalidated by growth.
//
// Suspension:
// An asynchronous test holds a per-test suspend counter. The run loop does
// not complete the test until the counter returns to zero. Resume calls may
// arrive from any goroutine; they mutate the counter under a lock and nudge
// a signal channel the scheduler waits on, so all completion decisions are
// still made on the scheduler goroutine. A resume without an outstanding
// suspension is a framework-usage error and aborts the run.
package runner
