package data

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ducminhle1904/quantile-risk-engine/pkg/types"
)

type cachedFile struct {
	modTime time.Time
	size    int64
	bars    []types.OHLCV
}

// CacheStats counts cache lookups
type CacheStats struct {
	Entries int
	Hits    int
	Misses  int
}

// CachedProvider keeps parsed bar files in memory. Walk-forward folds and
// profile comparisons reload the same files many times. An entry is reused
// only while the file's size and modification time are unchanged.
type CachedProvider struct {
	provider DataProvider

	mu      sync.Mutex
	entries map[string]cachedFile
	hits    int
	misses  int
}

// NewCachedProvider wraps provider
func NewCachedProvider(provider DataProvider) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		entries:  make(map[string]cachedFile),
	}
}

// GetName returns the name of the underlying provider with cache indication
func (p *CachedProvider) GetName() string {
	return "Cached " + p.provider.GetName()
}

// LoadData returns a copy of the cached bars of source, reading the file
// again when it changed or disappeared
func (p *CachedProvider) LoadData(source string) ([]types.OHLCV, error) {
	key := source
	if abs, err := filepath.Abs(source); err == nil {
		key = abs
	}

	info, statErr := os.Stat(source)
	if statErr == nil {
		p.mu.Lock()
		entry, ok := p.entries[key]
		fresh := ok && entry.size == info.Size() && entry.modTime.Equal(info.ModTime())
		if fresh {
			p.hits++
		} else {
			p.misses++
		}
		p.mu.Unlock()
		if fresh {
			return cloneBars(entry.bars), nil
		}
	}

	bars, err := p.provider.LoadData(source)
	if err != nil {
		p.mu.Lock()
		delete(p.entries, key)
		p.mu.Unlock()
		return nil, err
	}
	if statErr == nil {
		p.mu.Lock()
		p.entries[key] = cachedFile{modTime: info.ModTime(), size: info.Size(), bars: cloneBars(bars)}
		p.mu.Unlock()
	}

	log.Debug().Str("file", filepath.Base(source)).Int("bars", len(bars)).Msg("loaded bar file")
	return bars, nil
}

// ValidateData validates data using the underlying provider
func (p *CachedProvider) ValidateData(data []types.OHLCV) error {
	return p.provider.ValidateData(data)
}

// ClearCache drops every entry and resets the counters
func (p *CachedProvider) ClearCache() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = make(map[string]cachedFile)
	p.hits, p.misses = 0, 0
}

// Stats returns the cache counters
func (p *CachedProvider) Stats() CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return CacheStats{Entries: len(p.entries), Hits: p.hits, Misses: p.misses}
}

func cloneBars(bars []types.OHLCV) []types.OHLCV {
	out := make([]types.OHLCV, len(bars))
	copy(out, bars)
	return out
}
