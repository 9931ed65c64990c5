// Package scheduler runs periodic maintenance jobs against the content
// service.
package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	vc "github.com/structcms/versioned-content/pkg/versionedcontent"
)

const pruneBatchSize = 100

// Scheduler handles scheduled maintenance like pruning aged archived
// versions.
type Scheduler struct {
	service   vc.Service
	gateway   vc.Gateway
	cron      *cron.Cron
	logger    *slog.Logger
	schedule  string
	retention time.Duration
	keepMin   int
}

// New creates a new scheduler instance. keepMin archived versions are
// retained per content regardless of age.
func New(service vc.Service, gateway vc.Gateway, schedule string, retention time.Duration, keepMin int, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		service:   service,
		gateway:   gateway,
		cron:      cron.New(),
		logger:    logger,
		schedule:  schedule,
		retention: retention,
		keepMin:   keepMin,
	}
}

// Start begins the scheduler with the archived-version pruning job.
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		if err := s.pruneArchivedVersions(); err != nil {
			s.logger.Error("failed to prune archived versions", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()), "schedule", s.schedule)
	return nil
}

// Stop gracefully stops the scheduler.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// pruneArchivedVersions removes archived versions whose last modification
// is older than the retention window, oldest first, leaving at least
// keepMin archived versions on each content. Failures on individual
// versions are logged and skipped so one bad row cannot wedge the whole
// run.
func (s *Scheduler) pruneArchivedVersions() error {
	ctx := context.Background()
	cutoff := time.Now().UTC().Add(-s.retention)

	candidates, err := s.gateway.ListVersionsByStatus(ctx, vc.VersionStatusArchived, cutoff, pruneBatchSize)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	s.logger.Info("pruning archived versions", "candidates", len(candidates), "cutoff", cutoff)

	byContent := make(map[int64][]*vc.VersionInfo)
	for _, v := range candidates {
		byContent[v.ContentID] = append(byContent[v.ContentID], v)
	}

	pruned := 0
	for contentID, versions := range byContent {
		allowed, err := s.pruneBudget(ctx, contentID, len(versions))
		if err != nil {
			s.logger.Error("failed to count archived versions",
				"content_id", contentID, "error", err)
			continue
		}
		if allowed <= 0 {
			continue
		}

		sort.Slice(versions, func(i, j int) bool {
			return versions[i].Modified.Before(versions[j].Modified)
		})
		if allowed < len(versions) {
			versions = versions[:allowed]
		}

		for _, v := range versions {
			if err := s.service.DeleteVersion(ctx, v.ContentID, v.VersionNo); err != nil {
				s.logger.Error("failed to prune archived version",
					"content_id", v.ContentID,
					"version_no", v.VersionNo,
					"error", err,
				)
				continue
			}
			pruned++
		}
	}

	s.logger.Info("pruned archived versions", "pruned", pruned)
	return nil
}

// pruneBudget returns how many of a content's prune candidates may be
// deleted without dropping its archived-version count below keepMin.
func (s *Scheduler) pruneBudget(ctx context.Context, contentID int64, candidates int) (int, error) {
	if s.keepMin <= 0 {
		return candidates, nil
	}

	status := vc.VersionStatusArchived
	archived, err := s.gateway.ListVersions(ctx, contentID, vc.VersionFilter{Status: &status})
	if err != nil {
		return 0, err
	}

	allowed := len(archived) - s.keepMin
	if allowed > candidates {
		allowed = candidates
	}
	return allowed, nil
}
