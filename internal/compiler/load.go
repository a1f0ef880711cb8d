package compiler

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"

	"github.com/roach88/qindex/internal/ir"
)

// LoadResult contains a model loaded from a directory.
type LoadResult struct {
	Model     *ir.Model
	FileCount int // Number of CUE files found
	Cycles    []CycleWarning
}

// LoadModelDir loads every CUE file of dir as one instance, compiles it
// into a model and validates it. Validation problems are returned as
// ValidationErrors.
func LoadModelDir(dir string) (*LoadResult, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("model directory not found: %s", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("error accessing model directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}

	cueFiles, err := FindCUEFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("error scanning directory: %w", err)
	}
	if len(cueFiles) == 0 {
		return nil, fmt.Errorf("no CUE files found in %s", dir)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances loaded from %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", formatCUEError(inst.Err))
	}
	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", formatCUEError(err))
	}

	model, err := CompileModel(value)
	if err != nil {
		return nil, err
	}
	if len(model.Entities) == 0 {
		return nil, fmt.Errorf("no entities found in %s", dir)
	}
	if errs := ValidateModel(model); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &LoadResult{
		Model:     model,
		FileCount: len(cueFiles),
		Cycles:    AnalyzeCycles(model),
	}, nil
}

// FindCUEFiles returns the .cue files directly inside dir.
func FindCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".cue" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files, nil
}
