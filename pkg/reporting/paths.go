package reporting

import (
	"os"
	"path/filepath"
	"strings"
)

// DefaultResultsRoot is where reports land when no directory is configured
const DefaultResultsRoot = "results"

// DefaultPathManager implements path management functionality
type DefaultPathManager struct {
	root string
}

// NewDefaultPathManager creates a path manager rooted at root
func NewDefaultPathManager(root string) *DefaultPathManager {
	if strings.TrimSpace(root) == "" {
		root = DefaultResultsRoot
	}
	return &DefaultPathManager{root: root}
}

// GetDefaultOutputDir returns <root>/<label>_<first 8 chars of run id>
func (p *DefaultPathManager) GetDefaultOutputDir(label, runID string) string {
	l := sanitizeName(label)
	if l == "" {
		l = "run"
	}
	id := sanitizeName(runID)
	if len(id) > 8 {
		id = id[:8]
	}
	if id == "" {
		return filepath.Join(p.root, l)
	}
	return filepath.Join(p.root, l+"_"+id)
}

// EnsureDirectoryExists creates the parent directory of path
func (p *DefaultPathManager) EnsureDirectoryExists(path string) error {
	return ensureParent(path)
}

// DefaultOutputDir is a convenience wrapper around the default path manager
func DefaultOutputDir(label, runID string) string {
	return NewDefaultPathManager("").GetDefaultOutputDir(label, runID)
}

func ensureParent(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

func sanitizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ' || r == '/' || r == '.':
			return '_'
		}
		return -1
	}, s)
}
