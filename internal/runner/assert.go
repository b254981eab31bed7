package runner

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/quenchlabs/quench/internal/deepequal"
	"github.com/quenchlabs/quench/internal/report"
)

// Assert is the assertion recorder bound to the currently executing test
// unit. Every call evaluates its condition, folds the outcome into the
// owning test's counters, and fires the log lifecycle event.
//
// An Assert stays valid across a suspension: async callbacks may keep
// asserting until the final Start call completes the test. Once the test
// has completed, further calls on its Assert are dropped.
type Assert struct {
	runner *Runner
	unit   *testUnit
}

// Ok asserts that result is true.
func (a *Assert) Ok(result bool, message string) {
	a.runner.record(a.unit, result, result, true, message)
}

// Equal asserts loose deep equality between actual and expected.
func (a *Assert) Equal(actual, expected any, message string) {
	a.runner.record(a.unit, deepequal.Equal(actual, expected), actual, expected, message)
}

// NotEqual asserts that actual and expected are not loosely deep-equal.
func (a *Assert) NotEqual(actual, expected any, message string) {
	a.runner.record(a.unit, !deepequal.Equal(actual, expected), actual, expected, message)
}

// DeepEqual asserts structural deep equality between actual and expected.
func (a *Assert) DeepEqual(actual, expected any, message string) {
	a.runner.record(a.unit, deepequal.Equal(actual, expected), actual, expected, message)
}

// NotDeepEqual asserts that actual and expected are not deep-equal.
func (a *Assert) NotDeepEqual(actual, expected any, message string) {
	a.runner.record(a.unit, !deepequal.Equal(actual, expected), actual, expected, message)
}

// StrictEqual asserts deep equality with matching value categories and,
// for primitives, matching dynamic types.
func (a *Assert) StrictEqual(actual, expected any, message string) {
	a.runner.record(a.unit, deepequal.StrictEqual(actual, expected), actual, expected, message)
}

// NotStrictEqual asserts that actual and expected are not strictly
// deep-equal.
func (a *Assert) NotStrictEqual(actual, expected any, message string) {
	a.runner.record(a.unit, !deepequal.StrictEqual(actual, expected), actual, expected, message)
}

// Throws asserts that fn panics or propagates an error. The matcher may be
// nil (any error), a target error (matched with errors.Is or identical
// dynamic type), a substring, a *regexp.Regexp applied to the message, or
// a predicate func(error) bool.
func (a *Assert) Throws(fn func(), matcher any, message string) {
	err := capture(fn)
	ok := err != nil && matchError(err, matcher)
	var actual any
	if err != nil {
		actual = err.Error()
	}
	a.runner.record(a.unit, ok, actual, describeMatcher(matcher), message)
}

// Expect declares the exact number of assertions this test must run.
// A mismatch at completion is recorded as an additional failure.
func (a *Assert) Expect(n int) {
	a.runner.mu.Lock()
	a.unit.expected = n
	a.runner.mu.Unlock()
}

// Stop suspends this assert's own test (default delta 1). After the test
// has completed or timed out, the call is ignored so a stale callback
// cannot suspend whichever test is running now.
func (a *Assert) Stop(delta ...int) {
	a.runner.stopUnit(a.unit, delta...)
}

// Start resumes this assert's own test (default delta 1). Resuming a live
// test beyond its outstanding suspensions returns ErrOverResume and aborts
// the run; resuming after the framework already completed the test (e.g. a
// timeout force-failure) is ignored.
func (a *Assert) Start(delta ...int) error {
	return a.runner.startUnit(a.unit, delta...)
}

// record builds the assertion record, folds it into the unit's counters,
// and fires the log event. Counter mutation is locked because async
// callbacks may assert from other goroutines while the scheduler waits;
// the event fires outside the lock so subscribers can call back into the
// runner.
//
// An assertion against a completed unit (its results already folded, or
// abandoned by a timeout) is dropped: the record never reaches counters
// or log subscribers, so a stale callback cannot dispatch events
// concurrently with the scheduler.
func (r *Runner) record(u *testUnit, result bool, actual, expected any, message string) {
	rec := report.AssertionRecord{
		Seq:      r.clock.Next(),
		Result:   result,
		Actual:   actual,
		Expected: expected,
		Message:  message,
	}
	r.mu.Lock()
	if u.completed {
		r.mu.Unlock()
		r.logger.Warn("assertion after test completion dropped", "test", u.name, "message", message)
		return
	}
	fold(u, rec)
	r.mu.Unlock()

	if !result {
		r.logger.Debug("assertion failed", "test", u.name, "message", message)
	}
	r.events.emitLog(rec)
}

// recordFailure records a framework-synthesized failing assertion, e.g.
// a setup error, an expectation mismatch, or a timeout. Always called on
// the scheduler goroutine, so it lands even on a unit the scheduler has
// just abandoned.
func (r *Runner) recordFailure(u *testUnit, message string) {
	rec := report.AssertionRecord{
		Seq:     r.clock.Next(),
		Result:  false,
		Message: message,
	}
	r.mu.Lock()
	fold(u, rec)
	r.mu.Unlock()

	r.logger.Debug("assertion failed", "test", u.name, "message", message)
	r.events.emitLog(rec)
}

// fold mutates the unit's tallies. Caller holds r.mu.
func fold(u *testUnit, rec report.AssertionRecord) {
	u.assertions = append(u.assertions, rec)
	u.total++
	if rec.Result {
		u.passed++
	} else {
		u.failed++
	}
}

// capture invokes fn and converts a panic into an error.
func capture(fn func()) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if e, isErr := rec.(error); isErr {
				err = e
			} else {
				err = fmt.Errorf("%v", rec)
			}
		}
	}()
	fn()
	return nil
}

func matchError(err error, matcher any) bool {
	switch m := matcher.(type) {
	case nil:
		return true
	case string:
		return strings.Contains(err.Error(), m)
	case *regexp.Regexp:
		return m.MatchString(err.Error())
	case func(error) bool:
		return m(err)
	case error:
		return errors.Is(err, m) || reflect.TypeOf(err) == reflect.TypeOf(m)
	default:
		return false
	}
}

func describeMatcher(matcher any) any {
	switch m := matcher.(type) {
	case nil:
		return "any error"
	case *regexp.Regexp:
		return m.String()
	case func(error) bool:
		return "predicate"
	case error:
		return m.Error()
	default:
		return m
	}
}
