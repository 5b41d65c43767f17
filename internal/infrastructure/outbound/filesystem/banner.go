package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/sophialabs/apitrail/internal/infrastructure/ports"
)

// BannerStore holds the banner text read from a file.
type BannerStore struct {
	path   string
	logger ports.Logger

	mu   sync.RWMutex
	text string
}

// NewBannerStore creates a store for path. An empty path means no banner.
func NewBannerStore(path string, logger ports.Logger) *BannerStore {
	return &BannerStore{path: path, logger: logger}
}

// Path returns the banner file path.
func (b *BannerStore) Path() string {
	return b.path
}

// Load re-reads the banner file. A missing file clears the banner without error.
func (b *BannerStore) Load() error {
	if b.path == "" {
		return nil
	}
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			b.set("")
			b.logger.Debug("banner file not found", "path", b.path)
			return nil
		}
		return fmt.Errorf("read banner %q: %w", b.path, err)
	}
	b.set(string(data))
	b.logger.Debug("banner loaded", "path", b.path, "bytes", len(data))
	return nil
}

// Reload is Load for use as a watcher callback; failures are logged.
func (b *BannerStore) Reload() {
	if err := b.Load(); err != nil {
		b.logger.Warn("failed to reload banner", "error", err)
	}
}

// Text returns the current banner, empty when there is none.
func (b *BannerStore) Text() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.text
}

func (b *BannerStore) set(text string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = text
}
