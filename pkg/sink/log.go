package sink

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/turnere/Migrator-Tools/pkg/logger"
)

// LogWriter reports failures and totals through the logger
type LogWriter struct {
	Log *logger.Logger
}

func (w LogWriter) Name() string { return "log" }

func (w LogWriter) Write(_ context.Context, s Summary) error {
	for _, e := range s.Entries {
		if e.Status != "failed" {
			continue
		}
		w.Log.WithFields(logrus.Fields{
			"resource":  s.Resource,
			"source_id": e.SourceID,
			"name":      e.Name,
			"attempts":  e.Attempts,
		}).Warnf("Failed to migrate: %s", e.Detail)
	}
	w.Log.WithFields(logrus.Fields{
		"run_id":   s.RunID,
		"resource": s.Resource,
		"created":  s.Created,
		"skipped":  s.Skipped,
		"failed":   s.Failed,
		"duration": s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond).String(),
	}).Info("Run summary")
	return nil
}
