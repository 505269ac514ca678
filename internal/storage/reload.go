package storage

import (
	"fmt"
	"log/slog"
	"os"
)

// Rebuild replaces the store at livePath atomically. The new store is built
// at a sibling temp path by the build callback and only renamed over the
// live file once the callback succeeds, so readers never observe a
// half-loaded store and no stopped-server discipline is needed.
func Rebuild(livePath string, build func(*SQLiteRepository) error) error {
	tmpPath := livePath + ".reload"
	_ = os.Remove(tmpPath)

	repo, err := NewSQLiteRepository(tmpPath)
	if err != nil {
		return fmt.Errorf("create reload store: %w", err)
	}

	if err := build(repo); err != nil {
		repo.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("build reload store: %w", err)
	}
	if err := repo.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close reload store: %w", err)
	}

	if err := os.Rename(tmpPath, livePath); err != nil {
		_ = os.Remove(tmpPath)
		// Nothing to retry automatically here: the live file is in the
		// operator's hands (permissions, filesystem).
		return fmt.Errorf("publish reload store: %w", err)
	}

	slog.Info("Store rebuilt and published", "path", livePath)
	return nil
}
