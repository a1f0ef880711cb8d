package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// SuiteResult summarizes a run over several scenario files.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure represents one scenario that did not pass.
type ScenarioFailure struct {
	Path   string   `json:"path"`
	Name   string   `json:"name,omitempty"`
	Errors []string `json:"errors"`
}

// Pass reports whether every scenario passed.
func (r *SuiteResult) Pass() bool {
	return r.Failed == 0
}

// DiscoverScenarios expands paths into scenario files. Directories
// contribute their *.yaml and *.yml files (not recursive), sorted; files
// are kept as given.
func DiscoverScenarios(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("scenario path %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(p, pattern))
			if err != nil {
				return nil, err
			}
			found = append(found, matches...)
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// RunSuite loads and runs every file. A file that fails to load or run
// counts as a failed scenario; RunSuite itself only fails on context
// cancellation.
func RunSuite(ctx context.Context, files []string, opts Options) (*SuiteResult, error) {
	result := &SuiteResult{}
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Total++

		scenario, err := LoadScenario(path)
		if err != nil {
			result.fail(path, "", err.Error())
			continue
		}
		res, err := Run(ctx, scenario, opts)
		if err != nil {
			result.fail(path, scenario.Name, err.Error())
			continue
		}
		if !res.Pass {
			result.fail(path, scenario.Name, res.Errors...)
			continue
		}
		result.Passed++
	}
	return result, nil
}

func (r *SuiteResult) fail(path, name string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Path: path, Name: name, Errors: errs})
}
