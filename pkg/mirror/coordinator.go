package mirror

import (
	"context"
	"log"

	"docs-sentinel/pkg/models"
)

// TreeResolver resolves a target's manifest into its selected files.
type TreeResolver interface {
	ResolveTree(ctx context.Context, target models.SyncTarget) ([]models.SelectedFile, error)
}

// ReportWriter renders the flagged files of a whole run.
type ReportWriter interface {
	Write(flagged []models.FlaggedFile) error
}

// DetectionStore optionally persists flagged files for later review.
type DetectionStore interface {
	RecordFlaggedFile(ctx context.Context, file models.FlaggedFile) error
}

// Coordinator runs the resolve-then-sync pipeline once per target,
// sequentially, and hands the accumulated findings to the reporter exactly
// once. One target failing wholesale never prevents mirroring the others.
type Coordinator struct {
	targets  []models.SyncTarget
	resolver TreeResolver
	syncer   *Synchronizer
	reporter ReportWriter
	store    DetectionStore // nil when no database is configured
	logger   *log.Logger
}

// NewCoordinator wires the pipeline together. store may be nil.
func NewCoordinator(targets []models.SyncTarget, resolver TreeResolver, syncer *Synchronizer, reporter ReportWriter, store DetectionStore, logger *log.Logger) *Coordinator {
	return &Coordinator{
		targets:  targets,
		resolver: resolver,
		syncer:   syncer,
		reporter: reporter,
		store:    store,
		logger:   logger,
	}
}

// Run processes every configured target and writes the threat report.
func (c *Coordinator) Run(ctx context.Context) ([]models.TargetResult, error) {
	var allFlagged []models.FlaggedFile
	results := make([]models.TargetResult, 0, len(c.targets))

	for _, target := range c.targets {
		files, err := c.resolver.ResolveTree(ctx, target)
		if err != nil {
			c.logger.Printf("[%s] skipping target, resolve failed: %v", target.Name, err)
			results = append(results, models.TargetResult{
				Target: target.Name,
				Status: models.TargetSkipped,
				Err:    err,
			})
			continue
		}

		syncResult, err := c.syncer.Sync(ctx, target, files)
		if err != nil {
			c.logger.Printf("[%s] skipping target, sync failed: %v", target.Name, err)
			results = append(results, models.TargetResult{
				Target: target.Name,
				Status: models.TargetSkipped,
				Err:    err,
			})
			continue
		}

		for _, fileErr := range syncResult.Errors {
			c.logger.Printf("[%s] file error: %s", target.Name, fileErr)
		}

		results = append(results, models.TargetResult{
			Target:    target.Name,
			Status:    models.TargetOK,
			Succeeded: syncResult.Succeeded,
			Attempted: syncResult.Attempted,
		})
		allFlagged = append(allFlagged, syncResult.Flagged...)
	}

	if err := c.reporter.Write(allFlagged); err != nil {
		return results, err
	}

	if c.store != nil {
		for _, flagged := range allFlagged {
			if err := c.store.RecordFlaggedFile(ctx, flagged); err != nil {
				// Best effort: history recording never fails the run.
				c.logger.Printf("failed to record detection for %s: %v", flagged.File, err)
			}
		}
	}

	return results, nil
}
