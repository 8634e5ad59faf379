// Package janitor runs background cleanup: abandoned browser profile
// directories left by crashed renders, stale temp documents, and expired
// run records.
package janitor

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorhill/cronexpr"
	"github.com/robfig/cron/v3"

	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/render"
	"github.com/gentlegiant96202/silberarrows-uv-sub005/pkg/store"
)

// staleProfileAge is how long a profile directory may exist before it is
// considered abandoned. Renders finish in seconds; an hour is generous.
const staleProfileAge = time.Hour

// Janitor schedules periodic cleanup jobs.
type Janitor struct {
	store     *store.Store
	cron      *cron.Cron
	schedule  string
	retention time.Duration
	tempDir   string
}

// New creates a janitor. schedule is a six-field cron expression (with
// seconds); retention bounds how long run records are kept.
func New(st *store.Store, schedule string, retention time.Duration) (*Janitor, error) {
	if schedule == "" {
		schedule = "0 */30 * * * *" // Every 30 minutes at second 0
	}
	if _, err := cronexpr.Parse(schedule); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}

	return &Janitor{
		store:     st,
		cron:      cron.New(cron.WithSeconds()),
		schedule:  schedule,
		retention: retention,
		tempDir:   os.TempDir(),
	}, nil
}

// Start registers the cleanup job and starts the cron runner.
func (j *Janitor) Start() error {
	entryID, err := j.cron.AddFunc(j.schedule, j.sweep)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	j.cron.Start()
	log.Printf("[JANITOR] Started with cron expression '%s' (entry ID: %d)", j.schedule, entryID)
	return nil
}

// Stop stops the cron runner.
func (j *Janitor) Stop() {
	j.cron.Stop()
	log.Println("[JANITOR] Stopped")
}

// sweep runs one cleanup pass.
func (j *Janitor) sweep() {
	removed := j.sweepProfileDirs()
	if removed > 0 {
		log.Printf("[JANITOR] Removed %d abandoned profile directories", removed)
	}

	removed = j.sweepTempDocuments()
	if removed > 0 {
		log.Printf("[JANITOR] Removed %d stale temp documents", removed)
	}

	if j.retention > 0 && j.store != nil {
		cutoff := time.Now().Add(-j.retention)
		purged, err := j.store.PurgeBefore(cutoff)
		if err != nil {
			log.Printf("[JANITOR] ERROR: failed to purge runs: %v", err)
		} else if purged > 0 {
			log.Printf("[JANITOR] Purged %d run records older than %s", purged, j.retention)
		}
	}
}

// sweepProfileDirs removes browser profile directories older than
// staleProfileAge. A render cleans its own directory; anything still around
// after an hour belongs to a crashed process.
func (j *Janitor) sweepProfileDirs() int {
	entries, err := os.ReadDir(j.tempDir)
	if err != nil {
		log.Printf("[JANITOR] WARNING: failed to read temp dir: %v", err)
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), render.ProfileDirPrefix) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < staleProfileAge {
			continue
		}
		path := filepath.Join(j.tempDir, entry.Name())
		if err := os.RemoveAll(path); err != nil {
			log.Printf("[JANITOR] WARNING: failed to remove %s: %v", path, err)
			continue
		}
		removed++
	}
	return removed
}

// sweepTempDocuments removes staged HTML documents older than staleProfileAge.
func (j *Janitor) sweepTempDocuments() int {
	matches, err := filepath.Glob(filepath.Join(j.tempDir, "render-doc-*.html"))
	if err != nil {
		return 0
	}

	removed := 0
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) < staleProfileAge {
			continue
		}
		if err := os.Remove(path); err == nil {
			removed++
		}
	}
	return removed
}
