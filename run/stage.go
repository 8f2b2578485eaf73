package run

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/simrun/artifact"
	"github.com/jonwraymond/simrun/backend"
)

// stageTool links the tool's support files into dst. The notebook itself is
// only linked when keepNotebook is set, which remote venues need because
// they execute it on the other side.
func stageTool(t Tool, dst string, keepNotebook bool) error {
	src, err := filepath.Abs(t.Dir())
	if err != nil {
		return err
	}

	if t.stagesAll() {
		if err := artifact.LinkTree(src, dst); err != nil {
			return err
		}
		if keepNotebook {
			return nil
		}
		err := os.Remove(filepath.Join(dst, t.NotebookName()))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		return nil
	}

	if keepNotebook {
		if err := os.Symlink(filepath.Join(src, t.NotebookName()), filepath.Join(dst, t.NotebookName())); err != nil {
			return err
		}
	}
	for _, f := range t.ExtraFiles {
		to := filepath.Join(dst, f)
		if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
			return err
		}
		if err := os.Symlink(filepath.Join(src, f), to); err != nil {
			return err
		}
	}
	return nil
}

// stageInputFiles copies user files into the workspace's input directory.
func stageInputFiles(workspace string, files []string) error {
	dir := filepath.Join(workspace, backend.InputFilesDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range files {
		if err := artifact.CopyTree(f, dir); err != nil {
			return err
		}
	}
	return nil
}

// writeInputs writes the side-channel parameters document.
func writeInputs(workspace string, params map[string]any) error {
	data, err := yaml.Marshal(params)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(workspace, backend.InputsFile), data, 0o644)
}

// prerunFiles lists the workspace's top-level names before execution, plus
// the output document. These are the inputs a published entry carries.
func prerunFiles(workspace, document string) ([]string, error) {
	entries, err := os.ReadDir(workspace)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries)+1)
	for _, e := range entries {
		if e.Name() == backend.StagingDir {
			continue
		}
		names = append(names, e.Name())
	}
	if !slices.Contains(names, document) {
		names = append(names, document)
	}
	return names, nil
}
