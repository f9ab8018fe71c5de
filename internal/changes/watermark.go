package changes

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/snapctx/internal/utils"
)

const (
	watermarkLayout          = time.RFC3339Nano
	watermarkTemporarySuffix = ".tmp"
	watermarkWriteFailedLog  = "failed to record last run; the next --changed run will include every file"
	watermarkCorruptLog      = "ignoring unreadable last run marker"
)

// WatermarkReader exposes the persisted instant of the last successful run.
type WatermarkReader interface {
	Read() (time.Time, bool)
}

// WatermarkStore persists the last successful run instant as a single RFC 3339 timestamp
// under the context root. Concurrent runs are not coordinated; the last writer wins.
type WatermarkStore struct {
	directory string
	path      string
	logger    *zap.Logger
}

// NewWatermarkStore creates a store for contextRoot/last_run.
func NewWatermarkStore(contextRoot string, logger *zap.Logger) *WatermarkStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatermarkStore{
		directory: contextRoot,
		path:      filepath.Join(contextRoot, utils.WatermarkFileName),
		logger:    logger,
	}
}

// Path returns the watermark file location.
func (store *WatermarkStore) Path() string {
	return store.path
}

// Read returns the stored instant. Missing, unreadable, or malformed content all
// yield false.
func (store *WatermarkStore) Read() (time.Time, bool) {
	data, readError := os.ReadFile(store.path)
	if readError != nil {
		return time.Time{}, false
	}
	instant, parseError := time.Parse(watermarkLayout, strings.TrimSpace(string(data)))
	if parseError != nil {
		store.logger.Debug(watermarkCorruptLog, zap.String("path", store.path), zap.Error(parseError))
		return time.Time{}, false
	}
	return instant.UTC(), true
}

// Save overwrites the watermark with instant, creating the context root when needed.
// The file is replaced atomically through a temporary sibling.
func (store *WatermarkStore) Save(instant time.Time) error {
	if err := os.MkdirAll(store.directory, 0o755); err != nil {
		return fmt.Errorf("create context root %s: %w", store.directory, err)
	}
	serialized := instant.UTC().Format(watermarkLayout) + "\n"
	temporaryPath := store.path + watermarkTemporarySuffix
	if err := os.WriteFile(temporaryPath, []byte(serialized), 0o644); err != nil {
		return fmt.Errorf("write watermark %s: %w", temporaryPath, err)
	}
	if err := os.Rename(temporaryPath, store.path); err != nil {
		_ = os.Remove(temporaryPath)
		return fmt.Errorf("replace watermark %s: %w", store.path, err)
	}
	return nil
}

// Write records instant and only logs a warning when persistence fails.
func (store *WatermarkStore) Write(instant time.Time) {
	if err := store.Save(instant); err != nil {
		store.logger.Warn(watermarkWriteFailedLog, zap.String("path", store.path), zap.Error(err))
	}
}

// Clear removes the watermark. A missing file is not an error.
func (store *WatermarkStore) Clear() error {
	if err := os.Remove(store.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove watermark %s: %w", store.path, err)
	}
	return nil
}

var _ WatermarkReader = (*WatermarkStore)(nil)
