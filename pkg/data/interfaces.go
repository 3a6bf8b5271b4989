package data

import (
	"time"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

// DataProvider interface for loading historical bars from various sources
type DataProvider interface {
	// LoadData loads historical bars from the specified source
	LoadData(source string) ([]types.OHLCV, error)

	// ValidateData validates the integrity of the loaded bars
	ValidateData(data []types.OHLCV) error

	// GetName returns the name of the data provider
	GetName() string
}

// DataFilter interface for filtering and ordering bars
type DataFilter interface {
	// FilterByDateRange keeps bars within [start, end]; a zero bound is open
	FilterByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV

	// ValidateTimeSequence ensures bars are strictly chronological
	ValidateTimeSequence(data []types.OHLCV) error
}

// FileLocator finds the bar file of a symbol under a data root
type FileLocator interface {
	FindDataFile(dataRoot, symbol string) string
}

// CSVColumnMapping defines the column positions for different CSV formats.
// SymbolCol is optional; -1 means the symbol comes from the file name.
type CSVColumnMapping struct {
	TimestampCol int
	OpenCol      int
	HighCol      int
	LowCol       int
	CloseCol     int
	VolumeCol    int
	SymbolCol    int
	MinColumns   int
	DateFormats  []string
}

// Predefined CSV formats
var (
	// DailyCSVFormat is date,open,high,low,close,volume
	DailyCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		OpenCol:      1,
		HighCol:      2,
		LowCol:       3,
		CloseCol:     4,
		VolumeCol:    5,
		SymbolCol:    -1,
		MinColumns:   6,
		DateFormats:  []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339},
	}

	// PanelCSVFormat is date,symbol,open,high,low,close,volume for multi-symbol files
	PanelCSVFormat = CSVColumnMapping{
		TimestampCol: 0,
		SymbolCol:    1,
		OpenCol:      2,
		HighCol:      3,
		LowCol:       4,
		CloseCol:     5,
		VolumeCol:    6,
		MinColumns:   7,
		DateFormats:  []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339},
	}
)
