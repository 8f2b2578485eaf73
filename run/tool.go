package run

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/jonwraymond/simrun/cache"
)

// AllFiles as the only ExtraFiles entry stages the whole tool directory.
const AllFiles = "*"

// Tool is a resolved simtool.
type Tool struct {
	Name string

	// Revision is empty for unversioned tools, which are never cached.
	Revision string

	// Notebook is the path of the tool notebook.
	Notebook string

	// Published tools may use the trusted venues and always stage their
	// whole directory.
	Published bool

	// Outputs are the declared output names.
	Outputs []string

	// ExtraFiles lists files next to the notebook that an unpublished tool
	// needs, relative to the notebook directory. A single AllFiles entry
	// stages the whole directory; empty stages nothing.
	ExtraFiles []string
}

// Identity returns the cache identity of the tool.
func (t Tool) Identity() cache.Identity {
	return cache.Identity{Name: t.Name, Revision: t.Revision}
}

// NotebookName is the notebook's file name, also the output document name.
func (t Tool) NotebookName() string {
	return filepath.Base(t.Notebook)
}

// Dir is the directory holding the notebook.
func (t Tool) Dir() string {
	return filepath.Dir(t.Notebook)
}

func (t Tool) stagesAll() bool {
	return t.Published || (len(t.ExtraFiles) == 1 && t.ExtraFiles[0] == AllFiles)
}

// Validate checks that the tool can be run.
func (t Tool) Validate() error {
	if err := t.Identity().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrConfiguration, err)
	}
	if t.Notebook == "" {
		return fmt.Errorf("%w: tool %s has no notebook", ErrConfiguration, t.Name)
	}
	for _, f := range t.ExtraFiles {
		if f == AllFiles {
			continue
		}
		if !filepath.IsLocal(f) || strings.Contains(f, "\x00") {
			return fmt.Errorf("%w: tool %s extra file %q escapes the tool directory", ErrConfiguration, t.Name, f)
		}
	}
	return nil
}
