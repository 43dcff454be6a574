// Package harness provides testing utilities for the diagswitch key checker.
package harness

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/diagswitch/internal/analysis"
	"github.com/715d/diagswitch/pkg/diag"
	"github.com/715d/diagswitch/pkg/keycheck"
)

// BuildConfiguration represents a single build configuration to test.
type BuildConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// BuildTags are the build tags to use when loading packages.
	BuildTags []string `yaml:"build_tags"`

	// ReportDynamic enables reporting of non-constant keys.
	ReportDynamic bool `yaml:"report_dynamic"`

	// ExpectedFindings lists the findings expected for this configuration.
	ExpectedFindings []ExpectedFinding `yaml:"expected_findings"`
}

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing the test code.
	Dir string `yaml:"-"`

	// Accessors override the default registry accessors.
	Accessors []analysis.Accessor `yaml:"accessors"`

	// Keys override the built-in registry keys.
	Keys []string `yaml:"keys"`

	// BuildConfigurations defines multiple build configurations to test.
	BuildConfigurations []BuildConfiguration `yaml:"build_configurations"`
}

// ExpectedFinding represents a finding the checker should report.
type ExpectedFinding struct {
	// Key is the reported key.
	Key string `yaml:"key"`

	// Kind is "unknown" or "dynamic". Defaults to "unknown".
	Kind keycheck.Kind `yaml:"kind,omitempty"`

	// File is the optional file path (relative to the test dir).
	File string `yaml:"file,omitempty"`

	// Suppressed reports whether the finding carries a suppression.
	Suppressed bool `yaml:"suppressed,omitempty"`
}

func (e ExpectedFinding) id() string {
	kind := e.Kind
	if kind == "" {
		kind = keycheck.KindUnknown
	}
	return fmt.Sprintf("%s:%s:%t", kind, e.Key, e.Suppressed)
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its build configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.BuildConfigurations, "test case has no build configurations")

	var results []ConfigurationResult
	allSuccess := true
	for _, cfg := range tc.BuildConfigurations {
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.BuildConfigurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.BuildConfigurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration executes the checker for a single build configuration.
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg BuildConfiguration) *ConfigurationResult {
	t.Helper()
	dir := filepath.Join(h.root, tc.Dir)
	pkgs := LoadPackages(t, &LoaderConfig{Dir: dir, BuildTags: cfg.BuildTags})

	opts := keycheck.Options{
		Accessors:     tc.Accessors,
		ReportDynamic: cfg.ReportDynamic,
	}
	for _, k := range tc.Keys {
		opts.Keys = append(opts.Keys, diag.Key(k))
	}

	findings, err := keycheck.NewChecker(opts).Check(pkgs)
	require.NoError(t, err)
	return validateConfigurationResults(dir, cfg, findings)
}

// validateConfigurationResults compares actual findings with expected ones.
func validateConfigurationResults(dir string, cfg BuildConfiguration, findings []keycheck.Finding) *ConfigurationResult {
	cfgResult := &ConfigurationResult{
		Configuration: cfg,
		Findings:      findings,
	}

	if err := validateExpectedFindings(cfg.ExpectedFindings); err != nil {
		cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
		cfgResult.Details = []string{err.Error()}
		return cfgResult
	}

	expected := make(map[string]ExpectedFinding)
	for _, e := range cfg.ExpectedFindings {
		expected[e.id()] = e
	}
	// Each expected finding must be reported exactly once.
	actual := make(map[string][]string)
	for _, f := range findings {
		id := ExpectedFinding{Key: f.Key, Kind: f.Kind, Suppressed: f.Suppressed}.id()
		actual[id] = append(actual[id], relativeFile(dir, f.Position.Filename))
	}

	var missing, unexpected, details []string
	for id := range expected {
		if len(actual[id]) == 0 {
			missing = append(missing, id)
		}
	}
	for id, files := range actual {
		extra := files
		if _, found := expected[id]; found {
			extra = files[1:]
		}
		for _, file := range extra {
			unexpected = append(unexpected, fmt.Sprintf("%s (%s)", id, file))
		}
	}
	sort.Strings(missing)
	sort.Strings(unexpected)

	for _, m := range missing {
		details = append(details, "Should have been reported: "+m)
	}
	for _, u := range unexpected {
		details = append(details, "Should not have been reported: "+u)
	}
	for id, exp := range expected {
		if files := actual[id]; len(files) > 0 && exp.File != "" && !strings.HasSuffix(files[0], exp.File) {
			details = append(details, fmt.Sprintf(
				"File mismatch for %s: expected file ending with %q, got %q", id, exp.File, files[0]))
		}
	}
	sort.Strings(details)

	cfgResult.Success = len(details) == 0
	cfgResult.Details = details
	if cfgResult.Success {
		cfgResult.Message = fmt.Sprintf("All %d expected findings reported", len(expected))
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d missing, %d unexpected", len(missing), len(unexpected))
	}
	return cfgResult
}

// ConfigurationResult represents the result of running a single build configuration.
type ConfigurationResult struct {
	// Configuration is the build configuration that was run.
	Configuration BuildConfiguration

	// Findings is the raw result from the checker.
	Findings []keycheck.Finding

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each build configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Message provides a summary of the result.
	Message string
}

// validateExpectedFindings validates that expected findings have required fields.
func validateExpectedFindings(expected []ExpectedFinding) error {
	seen := make(map[string]bool)
	for i, exp := range expected {
		switch exp.Kind {
		case "", keycheck.KindUnknown:
			if strings.TrimSpace(exp.Key) == "" {
				return fmt.Errorf("expected finding at index %d has empty or missing 'key' field", i)
			}
		case keycheck.KindDynamic:
		default:
			return fmt.Errorf("expected finding at index %d has invalid kind %q", i, exp.Kind)
		}
		if seen[exp.id()] {
			return fmt.Errorf("expected finding at index %d duplicates %s", i, exp.id())
		}
		seen[exp.id()] = true
	}
	return nil
}

// relativeFile returns filename relative to root, or its base name.
func relativeFile(root, filename string) string {
	relPath, err := filepath.Rel(root, filename)
	if err != nil {
		return filepath.Base(filename)
	}
	return filepath.ToSlash(relPath)
}
