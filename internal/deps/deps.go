package deps

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/sys/unix"

	"carousel/internal/config"
)

// Requirement defines an external dependency Carousel relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// DirectoryStatus reports whether a configured directory is usable.
type DirectoryStatus struct {
	Name   string
	Path   string
	Passed bool
	Detail string
}

// SystemRequirements lists the binaries the conversion pipeline shells out
// to. Both the daemon startup snapshot and the CLI status command use this
// so the requirements list lives in one place.
func SystemRequirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "LibreOffice",
			Command:     cfg.Convert.SofficeBinary,
			Description: "Required for presentation to PDF conversion",
		},
		{
			Name:        "Poppler pdftoppm",
			Command:     cfg.Convert.PdftoppmBinary,
			Description: "Required for PDF page rasterization",
		},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Available = false
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Available = false
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// CheckSystemDeps evaluates all binary dependencies for the given config.
func CheckSystemDeps(cfg *config.Config) []Status {
	return CheckBinaries(SystemRequirements(cfg))
}

// CheckDirectoryAccess verifies that the directory exists and is
// readable/writable by the current process.
func CheckDirectoryAccess(name, path string) DirectoryStatus {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DirectoryStatus{Name: name, Path: path, Detail: "does not exist"}
		}
		return DirectoryStatus{Name: name, Path: path, Detail: fmt.Sprintf("stat: %v", err)}
	}
	if !info.IsDir() {
		return DirectoryStatus{Name: name, Path: path, Detail: "is not a directory"}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return DirectoryStatus{Name: name, Path: path, Detail: fmt.Sprintf("insufficient permissions: %v", err)}
	}
	return DirectoryStatus{Name: name, Path: path, Passed: true, Detail: "read/write ok"}
}

// CheckDataDirectories reports on the directories the daemon needs at runtime.
func CheckDataDirectories(cfg *config.Config) []DirectoryStatus {
	return []DirectoryStatus{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Sessions root", cfg.SessionsRoot()),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
}
