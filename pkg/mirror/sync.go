package mirror

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"docs-sentinel/pkg/fetch"
	"docs-sentinel/pkg/models"
	"docs-sentinel/pkg/threat"
)

// SyncResult reports the outcome of mirroring one target. Flagged and Errors
// accumulate in worker completion order, which is non-deterministic.
type SyncResult struct {
	Attempted int
	Succeeded int
	Flagged   []models.FlaggedFile
	Errors    []string
}

// Synchronizer downloads a target's selected files through the retrying
// fetcher with a fixed-size worker pool, writes them under the target's
// destination directory, and routes every document through the threat
// scanner.
type Synchronizer struct {
	fetcher       *fetch.Client
	timeout       time.Duration
	attempts      int
	concurrency   int
	progressEvery int
	logger        *log.Logger
}

// NewSynchronizer creates a synchronizer. timeout and attempts apply per
// file content fetch, independent of the manifest fetch budget.
func NewSynchronizer(fetcher *fetch.Client, timeout time.Duration, attempts, concurrency, progressEvery int, logger *log.Logger) *Synchronizer {
	if concurrency <= 0 {
		concurrency = 10
	}
	return &Synchronizer{
		fetcher:       fetcher,
		timeout:       timeout,
		attempts:      attempts,
		concurrency:   concurrency,
		progressEvery: progressEvery,
		logger:        logger,
	}
}

// Sync replaces the target's local mirror with the given files. Per-file
// failures are recorded and never abort the pool; the returned error covers
// only destination directory preparation.
func (s *Synchronizer) Sync(ctx context.Context, target models.SyncTarget, files []models.SelectedFile) (*SyncResult, error) {
	// Full replacement: the mirror must never mix a previous run's leftovers
	// with this run's content.
	if err := os.RemoveAll(target.DestPath); err != nil {
		return nil, fmt.Errorf("clearing mirror directory %s: %w", target.DestPath, err)
	}
	if err := os.MkdirAll(target.DestPath, 0755); err != nil {
		return nil, fmt.Errorf("creating mirror directory %s: %w", target.DestPath, err)
	}

	result := &SyncResult{Attempted: len(files)}
	if len(files) == 0 {
		return result, nil
	}

	workerCount := s.concurrency
	if workerCount > len(files) {
		workerCount = len(files)
	}

	// Channel receive is the atomic claim: no two workers get the same file.
	jobs := make(chan models.SelectedFile, len(files))
	for _, file := range files {
		jobs <- file
	}
	close(jobs)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		done int
	)
	for w := 0; w < workerCount; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobs {
				flagged, err := s.syncFile(ctx, target, file)

				mu.Lock()
				if err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
				} else {
					result.Succeeded++
					if flagged != nil {
						result.Flagged = append(result.Flagged, *flagged)
					}
				}
				done++
				if s.progressEvery > 0 && done%s.progressEvery == 0 {
					s.logger.Printf("[%s] progress: %d/%d files", target.Name, done, len(files))
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.logger.Printf("[%s] mirrored %d/%d files (%d flagged, %d errors)",
		target.Name, result.Succeeded, result.Attempted, len(result.Flagged), len(result.Errors))
	return result, nil
}

// syncFile fetches one document, scans it, and writes it verbatim to its
// destination. Returns a FlaggedFile when the scanner produced findings.
func (s *Synchronizer) syncFile(ctx context.Context, target models.SyncTarget, file models.SelectedFile) (*models.FlaggedFile, error) {
	content, err := s.fetcher.FetchText(ctx, file.RawURL, s.timeout, s.attempts)
	if err != nil {
		return nil, err
	}

	dest := filepath.Join(target.DestPath, filepath.FromSlash(file.RelPath))
	// Workers share parent directories; MkdirAll tolerates concurrent creation.
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return nil, fmt.Errorf("creating parent directory: %w", err)
	}
	if err := os.WriteFile(dest, []byte(content), 0644); err != nil {
		return nil, fmt.Errorf("writing file: %w", err)
	}

	if findings := threat.Scan(content); len(findings) > 0 {
		return &models.FlaggedFile{
			File:     target.Name + "/" + file.RelPath,
			Findings: findings,
		}, nil
	}
	return nil, nil
}
