// Package suitefile loads declarative test suites from YAML files and
// registers them with a runner. Suite files cover the value-level subset
// of the assertion vocabulary; tests that need real callbacks are written
// in Go against the runner directly.
package suitefile

import (
	"bytes"
	"fmt"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/quenchlabs/quench/internal/runner"
)

// Check kind constants. These mirror the assertion vocabulary minus
// Throws, which has no declarative form.
const (
	CheckOk             = "ok"
	CheckEqual          = "equal"
	CheckNotEqual       = "notEqual"
	CheckDeepEqual      = "deepEqual"
	CheckNotDeepEqual   = "notDeepEqual"
	CheckStrictEqual    = "strictEqual"
	CheckNotStrictEqual = "notStrictEqual"
)

// Suite is one declarative suite document.
type Suite struct {
	// Title is the suite display name.
	Title string `yaml:"title,omitempty"`

	// Tests lists tests that belong to no module.
	Tests []TestDef `yaml:"tests,omitempty"`

	// Modules groups tests under shared module names.
	Modules []ModuleDef `yaml:"modules,omitempty"`
}

// ModuleDef is a named group of tests.
type ModuleDef struct {
	Name  string    `yaml:"name"`
	Tests []TestDef `yaml:"tests"`
}

// TestDef declares one test as an ordered list of checks.
type TestDef struct {
	Name string `yaml:"name"`

	// Expect declares the exact assertion count. Absent means undeclared;
	// an explicit 0 is a legal declaration for an assertion-free test.
	Expect *int `yaml:"expect,omitempty"`

	Checks []Check `yaml:"checks"`
}

// Check is a single declarative assertion.
type Check struct {
	// Kind selects the assertion: ok, equal, notEqual, deepEqual,
	// notDeepEqual, strictEqual, notStrictEqual.
	Kind string `yaml:"kind"`

	// Value is the boolean condition for ok checks.
	Value *bool `yaml:"value,omitempty"`

	// Actual and Expected are the operands for the equality kinds.
	// YAML null is a legal operand.
	Actual   any `yaml:"actual,omitempty"`
	Expected any `yaml:"expected,omitempty"`

	Message string `yaml:"message,omitempty"`
}

// Load reads and parses one suite file. Unknown fields are rejected to
// catch typos like "check:" vs "checks:".
func Load(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}

	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite %s: %w", path, err)
	}
	return &suite, nil
}

// LoadGlob expands doublestar patterns (e.g. "suites/**/*.yaml"), loads
// every matching file concurrently, and returns the suites in sorted
// file-name order so registration order is deterministic.
func LoadGlob(patterns ...string) ([]*Suite, error) {
	var files []string
	seen := make(map[string]bool)
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad glob pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)

	suites := make([]*Suite, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			s, err := Load(path)
			if err != nil {
				return err
			}
			suites[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return suites, nil
}

// Register queues every test from the given suites on the runner, in
// document order: module-less tests first, then each module's tests.
func Register(r *runner.Runner, suites ...*Suite) {
	for _, s := range suites {
		for _, td := range s.Tests {
			registerTest(r, td)
		}
		for _, m := range s.Modules {
			r.Module(m.Name)
			for _, td := range m.Tests {
				registerTest(r, td)
			}
		}
	}
}

func registerTest(r *runner.Runner, td TestDef) {
	checks := td.Checks
	fn := func(a *runner.Assert) {
		for _, c := range checks {
			applyCheck(a, c)
		}
	}
	if td.Expect != nil {
		r.TestExpect(td.Name, *td.Expect, fn)
	} else {
		r.Test(td.Name, fn)
	}
}

func applyCheck(a *runner.Assert, c Check) {
	switch c.Kind {
	case CheckOk:
		a.Ok(c.Value != nil && *c.Value, c.Message)
	case CheckEqual:
		a.Equal(c.Actual, c.Expected, c.Message)
	case CheckNotEqual:
		a.NotEqual(c.Actual, c.Expected, c.Message)
	case CheckDeepEqual:
		a.DeepEqual(c.Actual, c.Expected, c.Message)
	case CheckNotDeepEqual:
		a.NotDeepEqual(c.Actual, c.Expected, c.Message)
	case CheckStrictEqual:
		a.StrictEqual(c.Actual, c.Expected, c.Message)
	case CheckNotStrictEqual:
		a.NotStrictEqual(c.Actual, c.Expected, c.Message)
	}
}

// validateSuite checks required fields. Check kinds are validated here so
// a typo fails at load time, not silently at run time.
func validateSuite(s *Suite) error {
	if len(s.Tests) == 0 && len(s.Modules) == 0 {
		return fmt.Errorf("suite declares no tests")
	}

	for i, td := range s.Tests {
		if err := validateTest(fmt.Sprintf("tests[%d]", i), &td); err != nil {
			return err
		}
	}
	for i, m := range s.Modules {
		if m.Name == "" {
			return fmt.Errorf("modules[%d]: name is required", i)
		}
		if len(m.Tests) == 0 {
			return fmt.Errorf("modules[%d] (%s): tests list is required and must be non-empty", i, m.Name)
		}
		for j, td := range m.Tests {
			if err := validateTest(fmt.Sprintf("modules[%d].tests[%d]", i, j), &td); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateTest(where string, td *TestDef) error {
	if td.Name == "" {
		return fmt.Errorf("%s: name is required", where)
	}
	if td.Expect != nil && *td.Expect < 0 {
		return fmt.Errorf("%s: expect must be non-negative", where)
	}
	// A check-less test is only meaningful as an assertion-free guard,
	// which requires declaring expect: 0.
	if len(td.Checks) == 0 && td.Expect == nil {
		return fmt.Errorf("%s: checks list is required and must be non-empty", where)
	}
	for k, c := range td.Checks {
		switch c.Kind {
		case CheckOk:
			if c.Value == nil {
				return fmt.Errorf("%s.checks[%d]: value is required for ok", where, k)
			}
		case CheckEqual, CheckNotEqual, CheckDeepEqual, CheckNotDeepEqual, CheckStrictEqual, CheckNotStrictEqual:
			// Operands may be any YAML value, including null.
		case "":
			return fmt.Errorf("%s.checks[%d]: kind is required", where, k)
		default:
			return fmt.Errorf("%s.checks[%d]: unknown check kind %q", where, k, c.Kind)
		}
	}
	return nil
}
