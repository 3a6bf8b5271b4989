package data

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// DefaultFileLocator implements FileLocator for standard file system layouts
type DefaultFileLocator struct{}

// NewDefaultFileLocator creates a new default file locator
func NewDefaultFileLocator() *DefaultFileLocator {
	return &DefaultFileLocator{}
}

// FindDataFile looks for <root>/<SYMBOL>.csv, <root>/<symbol>.csv and
// <root>/<SYMBOL>/daily.csv. Returns an empty string if nothing exists.
func (f *DefaultFileLocator) FindDataFile(dataRoot, symbol string) string {
	candidates := []string{
		filepath.Join(dataRoot, strings.ToUpper(symbol)+".csv"),
		filepath.Join(dataRoot, strings.ToLower(symbol)+".csv"),
		filepath.Join(dataRoot, strings.ToUpper(symbol), "daily.csv"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	log.Warn().Str("symbol", symbol).Strs("attempted", candidates).Msg("no data file found")
	return ""
}
