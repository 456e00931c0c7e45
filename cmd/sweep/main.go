package main

import (
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"deptportal/internal/config"
	"deptportal/internal/fsutil"
	"deptportal/internal/logger"
)

// sweep removes temp files orphaned under PUBLIC_ROOT by crashed uploads or compression
// runs. Temps younger than STALE_TEMP_AGE are left alone, so it can run next to the API.
func main() {
	cfg := config.Load()
	flush := logger.Init(logger.Options{Dev: cfg.IsDev(), SentryDSN: cfg.Log.SentryDSN, Location: cfg.Location()})
	defer flush()
	log := logger.Log

	root := cfg.Upload.PublicRoot
	res, err := fsutil.SweepTemp(root, cfg.Upload.StaleTempAge, time.Now())
	if err != nil {
		log.Error("temp_sweep_failed", "root", root, "error", err)
		flush()
		os.Exit(1)
	}
	log.Info("temp_sweep_completed",
		"root", root,
		"scanned", res.Scanned,
		"removed", res.Removed,
		"failed", res.Failed,
	)
	if res.Failed > 0 {
		flush()
		os.Exit(2)
	}
}
