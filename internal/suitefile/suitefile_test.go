package suitefile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quenchlabs/quench/internal/runner"
)

func TestLoad_Valid(t *testing.T) {
	s, err := Load("testdata/suites/math.yaml")
	require.NoError(t, err)

	assert.Equal(t, "math suite", s.Title)
	require.Len(t, s.Modules, 1)
	assert.Equal(t, "arithmetic", s.Modules[0].Name)
	require.Len(t, s.Modules[0].Tests, 2)
	require.NotNil(t, s.Modules[0].Tests[0].Expect)
	assert.Equal(t, 2, *s.Modules[0].Tests[0].Expect)
	assert.Nil(t, s.Modules[0].Tests[1].Expect, "absent expect stays undeclared")
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"unknown field", "testdata/invalid/unknown-field.yaml", "failed to parse YAML"},
		{"unknown check kind", "testdata/invalid/bad-kind.yaml", "unknown check kind"},
		{"no tests", "testdata/invalid/empty.yaml", "declares no tests"},
		{"missing file", "testdata/invalid/nope.yaml", "failed to read suite file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(tt.path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadGlob(t *testing.T) {
	suites, err := LoadGlob("testdata/suites/**/*.yaml")
	require.NoError(t, err)
	require.Len(t, suites, 2)

	// Sorted by file name: math.yaml before strings.yaml.
	assert.Equal(t, "math suite", suites[0].Title)
	assert.Equal(t, "strings suite", suites[1].Title)

	// Duplicate and overlapping patterns collapse.
	again, err := LoadGlob("testdata/suites/*.yaml", "testdata/suites/math.yaml")
	require.NoError(t, err)
	assert.Len(t, again, 2)
}

func TestLoadGlob_NoMatches(t *testing.T) {
	suites, err := LoadGlob("testdata/suites/*.toml")
	require.NoError(t, err)
	assert.Empty(t, suites)
}

func TestRegister_RunsChecks(t *testing.T) {
	suites, err := LoadGlob("testdata/suites/*.yaml")
	require.NoError(t, err)

	r := runner.New(runner.Config{Tokens: runner.NewFixedGenerator("suite-run")})
	Register(r, suites...)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, rep.Stats.Failed)
	assert.Equal(t, 7, rep.Stats.Passed, "all declared checks pass")
	require.Len(t, rep.Tests, 4)
	assert.Equal(t, "arithmetic", rep.Tests[0].Module)
	assert.Equal(t, "", rep.Tests[2].Module, "module-less tests carry no module name")
}

func TestRegister_FailingCheck(t *testing.T) {
	s := &Suite{
		Tests: []TestDef{{
			Name: "mismatch",
			Checks: []Check{{
				Kind:     CheckEqual,
				Actual:   1,
				Expected: 2,
				Message:  "will not match",
			}},
		}},
	}
	require.NoError(t, validateSuite(s))

	r := runner.New(runner.Config{Tokens: runner.NewFixedGenerator("suite-run")})
	Register(r, s)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Stats.Failed)
}

func TestRegister_ExpectZero(t *testing.T) {
	s, err := Load("testdata/guard.yaml")
	require.NoError(t, err)
	require.Len(t, s.Tests, 1)
	require.NotNil(t, s.Tests[0].Expect)
	assert.Equal(t, 0, *s.Tests[0].Expect)

	r := runner.New(runner.Config{RequireExpects: true, Tokens: runner.NewFixedGenerator("suite-run")})
	Register(r, s)

	rep, err := r.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, rep.Tests, 1)
	assert.Equal(t, 0, rep.Tests[0].Failed, "a declared zero count satisfies RequireExpects")
	assert.Equal(t, 0, rep.Stats.Total)
}

func TestValidate_ChecklessNeedsExpect(t *testing.T) {
	s := &Suite{Tests: []TestDef{{Name: "t"}}}
	err := validateSuite(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checks list is required")
}

func TestValidate_OkRequiresValue(t *testing.T) {
	s := &Suite{
		Tests: []TestDef{{
			Name:   "t",
			Checks: []Check{{Kind: CheckOk}},
		}},
	}
	err := validateSuite(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "value is required for ok")
}
