package utils

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gorm.io/gorm"

	"github.com/cppla/folio/models"
)

// orphanGrace keeps files that an in-flight upload has written but not yet recorded.
const orphanGrace = time.Hour

// StartMediaCleaner launches a background goroutine that periodically deletes
// files under dir that have no media row. It is best-effort and stops with ctx.
func StartMediaCleaner(ctx context.Context, db *gorm.DB, dir string, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			removed, err := SweepOrphanMedia(dir, orphanGrace, func(path string) (bool, error) {
				var count int64
				err := db.WithContext(ctx).Model(&models.Media{}).Where("file_path = ?", path).Count(&count).Error
				return count > 0, err
			})
			if err != nil {
				Sugar.Warnw("media cleaner failed", "dir", dir, "err", err)
			}
			if removed > 0 {
				Sugar.Infow("media cleaner removed orphans", "count", removed)
			}
		}
	}()
}

// SweepOrphanMedia removes regular files under dir older than grace for which
// known reports false. Lookup errors skip the file.
func SweepOrphanMedia(dir string, grace time.Duration, known func(path string) (bool, error)) (int, error) {
	cutoff := time.Now().Add(-grace)
	removed := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil || info.ModTime().After(cutoff) {
			return nil
		}
		ok, err := known(path)
		if err != nil || ok {
			return nil
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
		return nil
	})
	return removed, err
}
