package runner

import (
	"time"

	"github.com/quenchlabs/quench/internal/report"
)

// TestInfo is the payload of the testStart event.
type TestInfo struct {
	Name   string `json:"name"`
	Module string `json:"module,omitempty"`
}

// TestSummary is the payload of the testDone event. The counts are
// assertion tallies for that one test.
type TestSummary struct {
	Name   string `json:"name"`
	Module string `json:"module,omitempty"`
	Failed int    `json:"failed"`
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
}

// ModuleInfo is the payload of the moduleStart event.
type ModuleInfo struct {
	Name string `json:"name"`
}

// ModuleSummary is the payload of the moduleDone event. The counts are
// assertion tallies aggregated over the module's executed tests.
type ModuleSummary struct {
	Name   string `json:"name"`
	Failed int    `json:"failed"`
	Passed int    `json:"passed"`
	Total  int    `json:"total"`
}

// RunSummary is the payload of the done event.
type RunSummary struct {
	Failed  int           `json:"failed"`
	Passed  int           `json:"passed"`
	Total   int           `json:"total"`
	Runtime time.Duration `json:"runtime"`
}

// events holds the lifecycle callback registries. The event set is closed:
// begin, done, log, moduleStart, moduleDone, testStart, testDone. Multiple
// callbacks per event are invoked in registration order, synchronously
// within the scheduler's own execution.
//
// Callbacks are framework wiring, not test content: a panic inside one
// propagates out of Run rather than failing the current test.
type events struct {
	begin       []func()
	done        []func(RunSummary)
	log         []func(report.AssertionRecord)
	moduleStart []func(ModuleInfo)
	moduleDone  []func(ModuleSummary)
	testStart   []func(TestInfo)
	testDone    []func(TestSummary)
}

func (e *events) emitBegin() {
	for _, fn := range e.begin {
		fn()
	}
}

func (e *events) emitDone(s RunSummary) {
	for _, fn := range e.done {
		fn(s)
	}
}

func (e *events) emitLog(rec report.AssertionRecord) {
	for _, fn := range e.log {
		fn(rec)
	}
}

func (e *events) emitModuleStart(m ModuleInfo) {
	for _, fn := range e.moduleStart {
		fn(m)
	}
}

func (e *events) emitModuleDone(m ModuleSummary) {
	for _, fn := range e.moduleDone {
		fn(m)
	}
}

func (e *events) emitTestStart(t TestInfo) {
	for _, fn := range e.testStart {
		fn(t)
	}
}

func (e *events) emitTestDone(t TestSummary) {
	for _, fn := range e.testDone {
		fn(t)
	}
}

// OnBegin subscribes to the begin event, fired once when a run starts.
// Subscribe before calling Run.
func (r *Runner) OnBegin(fn func()) {
	r.events.begin = append(r.events.begin, fn)
}

// OnDone subscribes to the done event, fired once when the queue is
// exhausted and global statistics are finalized.
func (r *Runner) OnDone(fn func(RunSummary)) {
	r.events.done = append(r.events.done, fn)
}

// OnLog subscribes to the log event, fired for every assertion record.
func (r *Runner) OnLog(fn func(report.AssertionRecord)) {
	r.events.log = append(r.events.log, fn)
}

// OnModuleStart subscribes to the moduleStart event, fired when the first
// executed test of a module begins.
func (r *Runner) OnModuleStart(fn func(ModuleInfo)) {
	r.events.moduleStart = append(r.events.moduleStart, fn)
}

// OnModuleDone subscribes to the moduleDone event, fired when the last
// queued test belonging to a module has completed or been skipped.
func (r *Runner) OnModuleDone(fn func(ModuleSummary)) {
	r.events.moduleDone = append(r.events.moduleDone, fn)
}

// OnTestStart subscribes to the testStart event.
func (r *Runner) OnTestStart(fn func(TestInfo)) {
	r.events.testStart = append(r.events.testStart, fn)
}

// OnTestDone subscribes to the testDone event.
func (r *Runner) OnTestDone(fn func(TestSummary)) {
	r.events.testDone = append(r.events.testDone, fn)
}
