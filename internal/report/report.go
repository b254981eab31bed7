// Package report defines the structured output of a test run: the final
// aggregate statistics plus an ordered sequence of per-test result records
// with per-assertion detail. Renderers (console, JSON, CI artifacts) build
// their presentation from this data; the package itself renders nothing.
package report

import (
	"encoding/json"
	"time"
)

// Millis is a duration that marshals as whole milliseconds.
// Keeps report JSON stable and renderer-friendly.
type Millis time.Duration

// MarshalJSON renders the duration as an integer millisecond count.
func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(m).Milliseconds())
}

// UnmarshalJSON parses an integer millisecond count.
func (m *Millis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// Duration returns the underlying time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m)
}

// GlobalStats is the run-wide assertion tally, accumulated monotonically
// as tests complete and finalized once when the run finishes.
type GlobalStats struct {
	Passed  int    `json:"passed"`
	Failed  int    `json:"failed"`
	Total   int    `json:"total"`
	Runtime Millis `json:"runtime_ms"`
}

// AssertionRecord is the outcome of a single evaluated expectation.
// Seq is a run-wide monotonic sequence number, so records from different
// tests interleave in a well-defined order.
type AssertionRecord struct {
	Seq      int64  `json:"seq"`
	Result   bool   `json:"result"`
	Actual   any    `json:"actual,omitempty"`
	Expected any    `json:"expected,omitempty"`
	Message  string `json:"message,omitempty"`
}

// TestResult is the finished record of one test unit.
type TestResult struct {
	Name       string            `json:"name"`
	Module     string            `json:"module,omitempty"`
	Skipped    bool              `json:"skipped,omitempty"`
	Passed     int               `json:"passed"`
	Failed     int               `json:"failed"`
	Total      int               `json:"total"`
	Duration   Millis            `json:"duration_ms"`
	Assertions []AssertionRecord `json:"assertions,omitempty"`
}

// Pass reports whether the test completed without failures.
// A skipped test is neither passing nor failing.
func (t TestResult) Pass() bool {
	return !t.Skipped && t.Failed == 0
}

// Report is the finalized snapshot of one run.
type Report struct {
	Title string       `json:"title,omitempty"`
	RunID string       `json:"run_id"`
	Stats GlobalStats  `json:"stats"`
	Tests []TestResult `json:"tests"`
}

// FailedTests returns the failing test records in execution order.
func (r Report) FailedTests() []TestResult {
	var failed []TestResult
	for _, t := range r.Tests {
		if !t.Skipped && t.Failed > 0 {
			failed = append(failed, t)
		}
	}
	return failed
}

// Arrange returns a copy with presentational ordering applied: hidePassed
// drops fully-passing and skipped tests, reverse inverts result order.
// The receiver is not mutated.
func (r Report) Arrange(hidePassed, reverse bool) Report {
	out := r
	out.Tests = make([]TestResult, 0, len(r.Tests))
	for _, t := range r.Tests {
		if hidePassed && (t.Skipped || t.Failed == 0) {
			continue
		}
		out.Tests = append(out.Tests, t)
	}
	if reverse {
		for i, j := 0, len(out.Tests)-1; i < j; i, j = i+1, j-1 {
			out.Tests[i], out.Tests[j] = out.Tests[j], out.Tests[i]
		}
	}
	return out
}
