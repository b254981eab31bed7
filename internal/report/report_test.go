package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReport() Report {
	return Report{
		Title: "sample",
		RunID: "0190c9a2-0000-7000-8000-000000000001",
		Stats: GlobalStats{Passed: 2, Failed: 1, Total: 3, Runtime: Millis(42 * time.Millisecond)},
		Tests: []TestResult{
			{
				Name: "adds", Module: "math", Passed: 1, Failed: 0, Total: 1,
				Duration: Millis(3 * time.Millisecond),
				Assertions: []AssertionRecord{
					{Seq: 1, Result: true, Actual: 4, Expected: 4, Message: "2+2"},
				},
			},
			{
				Name: "compares", Module: "math", Passed: 1, Failed: 1, Total: 2,
				Duration: Millis(5 * time.Millisecond),
				Assertions: []AssertionRecord{
					{Seq: 2, Result: true, Actual: "a", Expected: "a", Message: "same"},
					{Seq: 3, Result: false, Actual: "a", Expected: "b", Message: "differs"},
				},
			},
			{Name: "skipped case", Module: "io", Skipped: true},
		},
	}
}

func TestReport_GoldenJSON(t *testing.T) {
	data, err := json.MarshalIndent(sampleReport(), "", "  ")
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "report", data)
}

func TestReport_Arrange(t *testing.T) {
	rep := sampleReport()

	hidden := rep.Arrange(true, false)
	require.Len(t, hidden.Tests, 1, "passing and skipped tests are hidden")
	assert.Equal(t, "compares", hidden.Tests[0].Name)

	reversed := rep.Arrange(false, true)
	require.Len(t, reversed.Tests, 3)
	assert.Equal(t, "skipped case", reversed.Tests[0].Name)
	assert.Equal(t, "adds", reversed.Tests[2].Name)

	// The source is untouched.
	assert.Equal(t, "adds", rep.Tests[0].Name)
}

func TestReport_FailedTests(t *testing.T) {
	failed := sampleReport().FailedTests()
	require.Len(t, failed, 1)
	assert.Equal(t, "compares", failed[0].Name)
}

func TestTestResult_Pass(t *testing.T) {
	assert.True(t, TestResult{Passed: 1}.Pass())
	assert.False(t, TestResult{Failed: 1}.Pass())
	assert.False(t, TestResult{Skipped: true}.Pass(), "skipped is not passing")
}

func TestMillis_RoundTrip(t *testing.T) {
	data, err := json.Marshal(Millis(1500 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, "1500", string(data))

	var m Millis
	require.NoError(t, json.Unmarshal([]byte("250"), &m))
	assert.Equal(t, 250*time.Millisecond, m.Duration())
}
