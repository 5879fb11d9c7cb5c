package services

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"quickpad/database"
	"quickpad/storage"
)

// orphanGrace keeps freshly written payloads out of the sweep so an upload
// whose rows are not committed yet is never collected.
const orphanGrace = time.Hour

// StartCleanupService starts a background cleanup service that runs every 24 hours
func StartCleanupService(db database.Database, store *storage.LocalStore) {
	go func() {
		ctx := context.Background()
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		RunCleanupTasks(ctx, db, store)

		for range ticker.C {
			RunCleanupTasks(ctx, db, store)
		}
	}()
}

// RunCleanupTasks removes upload payloads that no files row references
// anymore, such as leftovers from a crash between disk write and commit.
func RunCleanupTasks(ctx context.Context, db database.Database, store *storage.LocalStore) {
	log.Println("🧹 Running scheduled cleanup tasks...")

	names, err := store.List()
	if err != nil {
		log.Printf("⚠️ Failed to list upload payloads: %v", err)
		return
	}

	removed := 0
	for _, name := range names {
		path := store.Path(name)

		info, err := os.Stat(path)
		if err != nil || time.Since(info.ModTime()) < orphanGrace {
			continue
		}

		var exists bool
		if err := db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM files WHERE file_name = $1)`, filepath.Base(name)).Scan(&exists); err != nil {
			log.Printf("⚠️ Orphan check failed for %s: %v", name, err)
			continue
		}
		if exists {
			continue
		}

		if err := store.Remove(path); err != nil {
			log.Printf("⚠️ Failed to remove orphaned payload %s: %v", name, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("🗑️ Removed %d orphaned upload payloads", removed)
	}
	log.Println("🎯 Cleanup tasks completed successfully")
}
