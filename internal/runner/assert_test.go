package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/report"
)

// runSingle executes one test body and returns its result record.
func runSingle(t *testing.T, fn TestFunc) report.TestResult {
	t.Helper()
	r := newTestRunner(Config{})
	r.Test("probe", fn)
	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, rep.Tests, 1)
	return rep.Tests[0]
}

func TestAssert_EqualityVocabulary(t *testing.T) {
	res := runSingle(t, func(a *Assert) {
		a.Equal(1, 1.0, "loose numeric")
		a.NotEqual(1, 2, "different values")
		a.DeepEqual(map[string]int{"a": 1, "b": 2}, map[string]int{"b": 2, "a": 1}, "key order irrelevant")
		a.NotDeepEqual([]int{1, 2, 3}, []int{3, 2, 1}, "order matters")
		a.StrictEqual("x", "x", "same type")
		a.NotStrictEqual(1, 1.0, "types differ")
	})

	assert.Equal(t, 6, res.Passed)
	assert.Equal(t, 0, res.Failed)
}

func TestAssert_FailureRecordsDetail(t *testing.T) {
	res := runSingle(t, func(a *Assert) {
		a.Equal(41, 42, "answer check")
	})

	require.Len(t, res.Assertions, 1)
	rec := res.Assertions[0]
	assert.False(t, rec.Result)
	assert.Equal(t, 41, rec.Actual)
	assert.Equal(t, 42, rec.Expected)
	assert.Equal(t, "answer check", rec.Message)
}

var errSentinel = errors.New("sentinel")

func TestAssert_Throws(t *testing.T) {
	tests := []struct {
		name    string
		fn      func()
		matcher any
		want    bool
	}{
		{"panic with nil matcher", func() { panic("boom") }, nil, true},
		{"no panic fails", func() {}, nil, false},
		{"substring match", func() { panic("connection refused") }, "refused", true},
		{"substring mismatch", func() { panic("connection refused") }, "timeout", false},
		{"regexp match", func() { panic("code 503") }, regexp.MustCompile(`code \d+`), true},
		{"regexp mismatch", func() { panic("code abc") }, regexp.MustCompile(`code \d+`), false},
		{"sentinel errors.Is", func() { panic(fmt.Errorf("wrap: %w", errSentinel)) }, errSentinel, true},
		{"same error type", func() { panic(errors.New("a")) }, errors.New("b"), true},
		{"predicate accepts", func() { panic("x") }, func(err error) bool { return err.Error() == "x" }, true},
		{"predicate rejects", func() { panic("x") }, func(err error) bool { return false }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := runSingle(t, func(a *Assert) {
				a.Throws(tt.fn, tt.matcher, tt.name)
			})
			if tt.want {
				assert.Equal(t, 1, res.Passed)
			} else {
				assert.Equal(t, 1, res.Failed)
			}
		})
	}
}

func TestAssert_LogEventCarriesRecord(t *testing.T) {
	r := newTestRunner(Config{})
	var logged []report.AssertionRecord
	r.OnLog(func(rec report.AssertionRecord) { logged = append(logged, rec) })

	r.Test("t", func(a *Assert) {
		a.Ok(true, "first")
		a.Ok(false, "second")
	})

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, logged, 2)
	assert.True(t, logged[0].Result)
	assert.Equal(t, "first", logged[0].Message)
	assert.False(t, logged[1].Result)
	assert.Equal(t, "second", logged[1].Message)
}

func TestClock_Monotonic(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())
	assert.Equal(t, int64(2), c.Current())
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("a", "b")
	assert.Equal(t, "a", g.Generate())
	assert.Equal(t, "b", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	one, two := g.Generate(), g.Generate()
	assert.Len(t, one, 36)
	assert.NotEqual(t, one, two)
}
