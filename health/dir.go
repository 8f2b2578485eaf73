package health

import (
	"context"
	"fmt"
	"os"
)

// DirChecker checks that a directory exists and accepts new files.
type DirChecker struct {
	name string
	path string
}

// NewDirChecker creates a checker for path.
func NewDirChecker(name, path string) *DirChecker {
	return &DirChecker{name: name, path: path}
}

// Name returns the name of this checker.
func (d *DirChecker) Name() string {
	return d.name
}

// Check stats the directory and creates then removes a probe file in it.
// A missing directory is degraded: stores create their roots on first use.
func (d *DirChecker) Check(ctx context.Context) Result {
	if err := ctx.Err(); err != nil {
		return Unhealthy("context cancelled", err)
	}

	details := map[string]any{"path": d.path}

	info, err := os.Stat(d.path)
	if os.IsNotExist(err) {
		return Degraded("directory does not exist yet").WithDetails(details)
	}
	if err != nil {
		return Unhealthy("stat failed", err).WithDetails(details)
	}
	if !info.IsDir() {
		return Unhealthy("not a directory", fmt.Errorf("%w: %s is not a directory", ErrCheckFailed, d.path)).WithDetails(details)
	}
	details["mode"] = info.Mode().Perm().String()

	probe, err := os.CreateTemp(d.path, ".simrun-health-*")
	if err != nil {
		return Unhealthy("directory not writable", err).WithDetails(details)
	}
	name := probe.Name()
	_ = probe.Close()
	_ = os.Remove(name)

	return Healthy("directory writable").WithDetails(details)
}
