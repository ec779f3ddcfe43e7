// Package blueprint loads workspace declarations from CUE files.
//
// A blueprint declares verticals, their sheets, columns, agents, and seed
// rows in .cue files; loading compiles the declarations into grid values
// ready for the mutation store. CUE gives the declarations types, defaults,
// and constraints for free, so a malformed blueprint fails at load time
// with a file position instead of surfacing as a broken grid later.
package blueprint

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/gridloom/gridloom/internal/grid"
)

// Error codes for blueprint loading.
const (
	ErrCodeNotFound    = "BLUEPRINT_NOT_FOUND"
	ErrCodeNoFiles     = "NO_CUE_FILES"
	ErrCodeLoadFailed  = "LOAD_FAILED"
	ErrCodeBuildFailed = "BUILD_FAILED"
	ErrCodeCompile     = "COMPILE_FAILED"
)

// LoadError represents an error that occurred during blueprint loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Result contains the outcome of loading a blueprint directory.
type Result struct {
	Verticals []*grid.Vertical
	CUEValue  cue.Value // The raw CUE value for additional processing
	FileCount int       // Number of CUE files found
}

// Load reads and compiles every CUE file in a directory into grid values.
func Load(dir string) (*Result, error) {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("blueprint directory not found: %s", dir)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing blueprint directory: %v", err)}
	}
	if !info.IsDir() {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	cueFiles, err := findCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(cueFiles) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", inst.Err)}
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err), Pos: value.Pos()}
	}

	result := &Result{CUEValue: value, FileCount: len(cueFiles)}

	verticalsVal := value.LookupPath(cue.ParsePath("vertical"))
	if !verticalsVal.Exists() {
		return result, nil
	}
	iter, err := verticalsVal.Fields()
	if err != nil {
		return nil, &LoadError{Code: ErrCodeCompile, Message: fmt.Sprintf("iterating verticals: %v", err), Pos: verticalsVal.Pos()}
	}
	for iter.Next() {
		v, err := CompileVertical(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		result.Verticals = append(result.Verticals, v)
	}
	return result, nil
}

// findCUEFiles returns all non-hidden .cue files directly in dir.
func findCUEFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") || filepath.Ext(name) != ".cue" {
			continue
		}
		files = append(files, filepath.Join(dir, name))
	}
	return files, nil
}
