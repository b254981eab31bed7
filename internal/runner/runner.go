package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quenchlabs/quench/internal/report"
)

// ErrOverResume is returned when Start is called without an outstanding
// Stop. This indicates a logic defect in the caller's async handling, so
// it is surfaced immediately and aborts the run rather than being ignored.
var ErrOverResume = errors.New("resume without outstanding suspension")

// ErrNotIdle is returned when Run is called on a runner that has already
// started. A Runner drives exactly one run.
var ErrNotIdle = errors.New("runner has already started")

// State tracks the run-loop state machine.
type State int

const (
	// StateIdle means Run has not been called yet.
	StateIdle State = iota
	// StateRunning means the queue is being drained.
	StateRunning
	// StateDraining means the queue is empty and statistics are being finalized.
	StateDraining
	// StateFinished means the done event has fired.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateFinished:
		return "finished"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config carries suite-wide settings. There is no ambient singleton: every
// run is driven by one Runner built from one Config.
type Config struct {
	// Title is the suite display name carried into the report.
	Title string

	// RequireExpects fails any test that does not declare an expected
	// assertion count.
	RequireExpects bool

	// HidePassed and Reverse are presentational; they are applied when the
	// report is arranged for rendering, not during the run.
	HidePassed bool
	Reverse    bool

	// Autorun makes Load start the run immediately.
	Autorun bool

	// Filter selects tests by case-insensitive substring over
	// "module: name". A leading '!' inverts the match.
	Filter string

	// Module selects tests by exact module name.
	Module string

	// TestNumber selects a single test by 1-based registration index.
	TestNumber int

	// Timeout force-fails a suspended test that is not resumed in time and
	// advances the queue. Zero means wait forever.
	Timeout time.Duration

	// Logger receives structured diagnostics. Defaults to a discard handler.
	Logger *slog.Logger

	// Tokens generates the run identifier. Defaults to UUIDv7.
	Tokens TokenGenerator
}

// ModuleHooks are a module's shared lifecycle callbacks. A setup error
// skips the test body and marks the test failed; a teardown error marks
// the test failed. Either way the run continues with the next test.
type ModuleHooks struct {
	Setup    func() error
	Teardown func() error
}

// TestFunc is a test body. It receives the assertion recorder bound to its
// own test unit.
type TestFunc func(*Assert)

// moduleContext groups queued tests under a shared name and lifecycle.
// Re-registering a module name creates a fresh context: hooks are replaced
// for tests registered afterwards, tests already queued keep the old ones.
type moduleContext struct {
	name    string
	hooks   ModuleHooks
	started bool // moduleStart emitted
	pending int  // queued tests not yet completed or skipped

	// Assertion tallies over executed tests, mutated by the scheduler only.
	passed, failed, total int
}

// testUnit is one queued test with its assertion bookkeeping.
// Name, module, body, and index are immutable after registration; the
// counters are owned by the in-flight execution of this unit.
type testUnit struct {
	name     string
	module   *moduleContext
	expected int // declared assertion count, -1 when undeclared
	fn       TestFunc
	isAsync  bool
	index    int // 1-based registration index, used by TestNumber filtering

	suspend               int
	completed             bool // folded into results, or abandoned by a timeout
	passed, failed, total int
	assertions            []report.AssertionRecord
	start, end            time.Time
}

func (u *testUnit) moduleName() string {
	if u.module == nil {
		return ""
	}
	return u.module.name
}

func (u *testUnit) fullName() string {
	if u.module == nil {
		return u.name
	}
	return u.module.name + ": " + u.name
}

// Runner owns the ordered queue of modules and tests for the lifetime of
// one run and drains it one test at a time.
type Runner struct {
	cfg    Config
	logger *slog.Logger
	tokens TokenGenerator
	events events
	clock  *Clock

	// mu guards the queue, the active module pointer, the active unit's
	// suspend counter, and the fault slot. Registration and resume calls
	// may arrive from outside the scheduler goroutine.
	mu         sync.Mutex
	queue      []*testUnit
	cursor     int
	registered int
	current    *moduleContext
	active     *testUnit
	fault      error

	// signal wakes the scheduler when a resume arrives. Buffered size 1 so
	// repeated nudges coalesce.
	signal chan struct{}

	state     State
	stats     report.GlobalStats
	results   []report.TestResult
	runID     string
	startedAt time.Time
}

// New creates a Runner from the given configuration.
func New(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	tokens := cfg.Tokens
	if tokens == nil {
		tokens = UUIDv7Generator{}
	}
	return &Runner{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		clock:  NewClock(),
		queue:  make([]*testUnit, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Module sets the active module context for subsequent test registrations.
// Registering a name again replaces the lifecycle hooks for new tests but
// leaves already-queued tests on their original context.
func (r *Runner) Module(name string, hooks ...ModuleHooks) {
	m := &moduleContext{name: name}
	if len(hooks) > 0 {
		m.hooks = hooks[0]
	}
	r.mu.Lock()
	r.current = m
	r.mu.Unlock()
}

// Test registers a synchronous test under the active module.
func (r *Runner) Test(name string, fn TestFunc) {
	r.register(name, -1, fn, false)
}

// TestExpect registers a synchronous test with a declared assertion count.
func (r *Runner) TestExpect(name string, expected int, fn TestFunc) {
	r.register(name, expected, fn, false)
}

// AsyncTest registers a test that begins with one outstanding suspension.
// It completes only after a matching Start call.
func (r *Runner) AsyncTest(name string, fn TestFunc) {
	r.register(name, -1, fn, true)
}

// AsyncTestExpect registers an asynchronous test with a declared assertion
// count.
func (r *Runner) AsyncTestExpect(name string, expected int, fn TestFunc) {
	r.register(name, expected, fn, true)
}

// register appends a test unit to the tail of the queue. Safe to call
// while the scheduler is mid-drain: the read cursor is position-based, so
// growth is always visible and never invalidates it.
func (r *Runner) register(name string, expected int, fn TestFunc, isAsync bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered++
	u := &testUnit{
		name:     name,
		module:   r.current,
		expected: expected,
		fn:       fn,
		isAsync:  isAsync,
		index:    r.registered,
	}
	if u.module != nil {
		u.module.pending++
	}
	r.queue = append(r.queue, u)
}

// Stop increments the active test's suspend counter (default delta 1).
// The test will not complete until Start brings the counter back to zero.
func (r *Runner) Stop(delta ...int) {
	d := 1
	if len(delta) > 0 {
		d = delta[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.logger.Warn("stop called with no test in flight")
		return
	}
	r.active.suspend += d
}

// Start decrements the active test's suspend counter (default delta 1) and
// wakes the scheduler. Calling Start with no test in flight or beyond the
// outstanding suspend count returns ErrOverResume and aborts the run.
//
// Safe to call from any goroutine, e.g. a timer firing after the test body
// has returned.
func (r *Runner) Start(delta ...int) error {
	d := 1
	if len(delta) > 0 {
		d = delta[0]
	}
	r.mu.Lock()
	u := r.active
	r.mu.Unlock()
	if u == nil {
		return r.overResume(d)
	}
	return r.startUnit(u, delta...)
}

// stopUnit suspends one specific unit. A stale callback whose test has
// already completed or timed out is ignored rather than suspending
// whichever test happens to be active now.
func (r *Runner) stopUnit(u *testUnit, delta ...int) {
	d := 1
	if len(delta) > 0 {
		d = delta[0]
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.completed {
		r.logger.Warn("stop after test completion ignored", "test", u.name)
		return
	}
	u.suspend += d
}

// startUnit resumes one specific unit. Resuming a unit the framework has
// already completed (e.g. force-failed by Timeout) is ignored; resuming a
// live unit beyond its outstanding suspend count is an over-resume fault.
func (r *Runner) startUnit(u *testUnit, delta ...int) error {
	d := 1
	if len(delta) > 0 {
		d = delta[0]
	}
	r.mu.Lock()
	if u.completed {
		r.mu.Unlock()
		r.logger.Warn("start after test completion ignored", "test", u.name)
		return nil
	}
	if u.suspend-d < 0 {
		r.mu.Unlock()
		return r.overResume(d)
	}
	u.suspend -= d
	r.mu.Unlock()
	r.wake()
	return nil
}

// overResume records the run-level fault and wakes the scheduler so it can
// abort.
func (r *Runner) overResume(d int) error {
	err := fmt.Errorf("%w (start delta %d)", ErrOverResume, d)
	r.mu.Lock()
	if r.fault == nil {
		r.fault = err
	}
	r.mu.Unlock()
	r.wake()
	return err
}

func (r *Runner) wake() {
	select {
	case r.signal <- struct{}{}:
	default:
	}
}

// Load honors Config.Autorun: it starts the run immediately when set and
// is a no-op otherwise.
func (r *Runner) Load(ctx context.Context) (*report.Report, error) {
	if !r.cfg.Autorun {
		return nil, nil
	}
	return r.Run(ctx)
}

// Run drains the queue, executing each registered test in FIFO order, and
// returns the finalized report.
//
// Must be called once, from one goroutine. Tests may register more tests
// while running; they are picked up by the same run. An error return means
// a framework-level fault (over-resume, context cancellation), not a test
// failure: failing tests are reported through the returned report.
func (r *Runner) Run(ctx context.Context) (*report.Report, error) {
	r.mu.Lock()
	if r.state != StateIdle {
		r.mu.Unlock()
		return nil, ErrNotIdle
	}
	r.state = StateRunning
	queued := len(r.queue)
	r.mu.Unlock()

	runID := r.tokens.Generate()
	r.mu.Lock()
	r.runID = runID
	r.startedAt = time.Now()
	r.mu.Unlock()
	r.logger.Info("run starting", "run_id", runID, "queued", queued)
	r.events.emitBegin()

	for {
		if err := r.currentFault(); err != nil {
			return nil, err
		}
		u := r.nextUnit()
		if u == nil {
			break
		}
		if r.skip(u) {
			r.finishSkipped(u)
			continue
		}
		if err := r.runUnit(ctx, u); err != nil {
			return nil, err
		}
	}

	r.setState(StateDraining)
	r.mu.Lock()
	r.stats.Runtime = report.Millis(time.Since(r.startedAt))
	stats := r.stats
	r.mu.Unlock()
	r.logger.Info("run finished",
		"run_id", r.runID,
		"passed", stats.Passed,
		"failed", stats.Failed,
		"total", stats.Total,
		"runtime", stats.Runtime.Duration(),
	)
	r.events.emitDone(RunSummary{
		Failed:  stats.Failed,
		Passed:  stats.Passed,
		Total:   stats.Total,
		Runtime: stats.Runtime.Duration(),
	})
	r.setState(StateFinished)

	// HidePassed and Reverse shape only the returned report; Snapshot
	// stays in execution order for programmatic consumers.
	snap := r.Snapshot().Arrange(r.cfg.HidePassed, r.cfg.Reverse)
	return &snap, nil
}

// nextUnit pops the next queued unit. The drained slot is nilled out so
// completed units do not stay reachable through the queue's backing array.
func (r *Runner) nextUnit() *testUnit {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cursor >= len(r.queue) {
		return nil
	}
	u := r.queue[r.cursor]
	r.queue[r.cursor] = nil
	r.cursor++
	return u
}

// skip applies the drain-time filter criteria. Skipped units are not
// executed and contribute nothing to the statistics.
func (r *Runner) skip(u *testUnit) bool {
	if r.cfg.TestNumber > 0 && u.index != r.cfg.TestNumber {
		return true
	}
	if r.cfg.Module != "" && u.moduleName() != r.cfg.Module {
		return true
	}
	if f := r.cfg.Filter; f != "" {
		exclude := strings.HasPrefix(f, "!")
		f = strings.TrimPrefix(f, "!")
		match := strings.Contains(strings.ToLower(u.fullName()), strings.ToLower(f))
		return match == exclude
	}
	return false
}

func (r *Runner) finishSkipped(u *testUnit) {
	r.logger.Debug("test skipped", "name", u.name, "module", u.moduleName())
	r.mu.Lock()
	u.completed = true
	r.results = append(r.results, report.TestResult{
		Name:    u.name,
		Module:  u.moduleName(),
		Skipped: true,
	})
	r.mu.Unlock()
	r.releaseModule(u)
}

// runUnit executes one test unit to completion: module setup, body,
// suspension wait, module teardown, expectation reconciliation, and event
// emission. Returns an error only for framework-level faults.
func (r *Runner) runUnit(ctx context.Context, u *testUnit) error {
	m := u.module
	if m != nil && !m.started {
		m.started = true
		r.events.emitModuleStart(ModuleInfo{Name: m.name})
		r.logger.Debug("module starting", "module", m.name)
	}

	u.start = time.Now()
	r.mu.Lock()
	r.active = u
	if u.isAsync {
		u.suspend = 1
	}
	r.mu.Unlock()

	a := &Assert{runner: r, unit: u}

	var setupErr error
	if m != nil && m.hooks.Setup != nil {
		setupErr = runHook(m.hooks.Setup)
	}

	r.events.emitTestStart(TestInfo{Name: u.name, Module: u.moduleName()})
	r.logger.Debug("test starting", "name", u.name, "module", u.moduleName(), "index", u.index)

	if setupErr != nil {
		// Setup failures skip the body entirely.
		r.recordFailure(u, fmt.Sprintf("setup failed: %v", setupErr))
		r.clearSuspension(u)
	} else {
		r.invokeBody(a, u)
	}

	if err := r.awaitResume(ctx, u); err != nil {
		return err
	}

	if m != nil && m.hooks.Teardown != nil {
		if err := runHook(m.hooks.Teardown); err != nil {
			r.recordFailure(u, fmt.Sprintf("teardown failed: %v", err))
		}
	}

	r.mu.Lock()
	total := u.total
	r.mu.Unlock()
	if u.expected >= 0 {
		if u.expected != total {
			r.recordFailure(u, fmt.Sprintf("expected %d assertions, but %d were run", u.expected, total))
		}
	} else if r.cfg.RequireExpects {
		r.recordFailure(u, "expected assertion count was not declared")
	}

	u.end = time.Now()

	// Fold the unit and retire it in one critical section: once completed
	// is set, stale callbacks can no longer mutate it or reach subscribers.
	r.mu.Lock()
	r.active = nil
	u.completed = true
	if m != nil {
		m.passed += u.passed
		m.failed += u.failed
		m.total += u.total
	}
	r.stats.Passed += u.passed
	r.stats.Failed += u.failed
	r.stats.Total += u.total
	r.results = append(r.results, report.TestResult{
		Name:       u.name,
		Module:     u.moduleName(),
		Passed:     u.passed,
		Failed:     u.failed,
		Total:      u.total,
		Duration:   report.Millis(u.end.Sub(u.start)),
		Assertions: u.assertions,
	})
	r.mu.Unlock()

	r.events.emitTestDone(TestSummary{
		Name:   u.name,
		Module: u.moduleName(),
		Failed: u.failed,
		Passed: u.passed,
		Total:  u.total,
	})
	r.logger.Info("test done",
		"name", u.name,
		"module", u.moduleName(),
		"passed", u.passed,
		"failed", u.failed,
	)

	r.releaseModule(u)
	return r.currentFault()
}

// invokeBody runs the test body, converting a panic into a recorded
// failure. A panicked body can never arrange its own resume, so any
// outstanding suspension is cleared along the way.
func (r *Runner) invokeBody(a *Assert, u *testUnit) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recordFailure(u, fmt.Sprintf("test panicked: %v", rec))
			r.clearSuspension(u)
		}
	}()
	u.fn(a)
}

// awaitResume blocks until the unit's suspend counter reaches zero. Resume
// signals arrive through the signal channel, so the wait is cooperative:
// no other test begins while a unit is suspended. With a configured
// Timeout, a hung suspension is force-failed and the queue advances.
func (r *Runner) awaitResume(ctx context.Context, u *testUnit) error {
	for {
		r.mu.Lock()
		fault := r.fault
		outstanding := u.suspend
		r.mu.Unlock()
		if fault != nil {
			return fault
		}
		if outstanding == 0 {
			return nil
		}

		var timeout <-chan time.Time
		var timer *time.Timer
		if r.cfg.Timeout > 0 {
			timer = time.NewTimer(r.cfg.Timeout)
			timeout = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return ctx.Err()
		case <-r.signal:
			if timer != nil {
				timer.Stop()
			}
		case <-timeout:
			// Abandon the unit before recording the failure: from this
			// point any resume or assertion from the hung callback is
			// dropped instead of mutating a test the run has moved past.
			r.mu.Lock()
			u.suspend = 0
			u.completed = true
			r.mu.Unlock()
			r.recordFailure(u, fmt.Sprintf("test timed out after %s waiting for resume", r.cfg.Timeout))
			return nil
		}
	}
}

func (r *Runner) clearSuspension(u *testUnit) {
	r.mu.Lock()
	u.suspend = 0
	r.mu.Unlock()
}

// releaseModule folds a completed or skipped unit out of its module's
// pending count and emits moduleDone when the count reaches zero. Tests
// registered into the module mid-run extend the window, because they
// incremented pending at registration time.
func (r *Runner) releaseModule(u *testUnit) {
	m := u.module
	if m == nil {
		return
	}
	r.mu.Lock()
	m.pending--
	done := m.pending == 0 && m.started
	r.mu.Unlock()
	if done {
		r.events.emitModuleDone(ModuleSummary{
			Name:   m.name,
			Failed: m.failed,
			Passed: m.passed,
			Total:  m.total,
		})
		r.logger.Debug("module done", "module", m.name, "failed", m.failed, "total", m.total)
	}
}

func (r *Runner) currentFault() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fault
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// State returns the run-loop state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Stats returns the global assertion tally accumulated so far. Safe to
// call while the run is in progress.
func (r *Runner) Stats() report.GlobalStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// Snapshot builds the structured report from the results collected so far.
// After Run returns, this is the finalized run report. Safe to call while
// the run is in progress, e.g. from a lifecycle subscriber.
func (r *Runner) Snapshot() report.Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	return report.Report{
		Title: r.cfg.Title,
		RunID: r.runID,
		Stats: r.stats,
		Tests: append([]report.TestResult(nil), r.results...),
	}
}

// runHook invokes a lifecycle hook, converting a panic into an error so a
// misbehaving hook fails its test instead of the run.
func runHook(hook func() error) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("hook panicked: %v", rec)
		}
	}()
	return hook()
}
