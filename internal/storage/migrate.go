// ABOUTME: Data migration between storage backends.
// ABOUTME: Copies every record, tombstones and sync flags included, parents first.

package storage

import (
	"fmt"
	"os"

	"github.com/harperreed/periodize/internal/models"
)

// MigrateSummary holds counts of migrated entities.
type MigrateSummary = ImportSummary

// MigrateData copies all records from src to dst verbatim. Dirty flags and
// tombstones travel with the records so pending pushes are not lost.
// Pull cursors are not copied; the next sync on dst re-pulls everything.
func MigrateData(src, dst *Store) (*MigrateSummary, error) {
	summary := &MigrateSummary{}
	for _, kind := range models.Kinds {
		recs, err := src.AllRecords(kind)
		if err != nil {
			return nil, fmt.Errorf("list source %s: %w", kind.Table(), err)
		}
		for _, rec := range recs {
			if err := dst.Restore(rec); err != nil {
				return nil, fmt.Errorf("copy %s %s: %w", kind, rec.Base().ID, err)
			}
			summary.count(kind)
		}
	}
	return summary, nil
}

// IsDirNonEmpty checks whether a directory exists and contains any files or subdirectories.
// Returns false if the directory does not exist or is empty.
func IsDirNonEmpty(path string) (bool, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("read directory %q: %w", path, err)
	}
	return len(entries) > 0, nil
}
