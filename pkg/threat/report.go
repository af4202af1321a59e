package threat

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"docs-sentinel/pkg/models"
)

// Reporter renders all flagged files of a run into a single report artifact.
// A run with zero findings deletes any stale artifact from a previous run.
type Reporter struct {
	path   string
	logger *log.Logger
	now    func() time.Time
}

// NewReporter creates a reporter writing to the given path.
func NewReporter(path string, logger *log.Logger) *Reporter {
	return &Reporter{
		path:   path,
		logger: logger,
		now:    time.Now,
	}
}

// Write overwrites the report artifact with the given flagged files, or
// removes it when there is nothing to report.
func (r *Reporter) Write(flagged []models.FlaggedFile) error {
	if len(flagged) == 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing stale threat report: %w", err)
		}
		r.logger.Printf("No threats found, report artifact removed")
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "THREAT REPORT - generated %s\n", r.now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "%d file(s) flagged\n\n", len(flagged))
	for _, file := range flagged {
		fmt.Fprintf(&b, "%s\n", file.File)
		for _, finding := range file.Findings {
			fmt.Fprintf(&b, "    [%s] %s\n", finding.Type, finding.Match)
		}
	}

	if err := os.WriteFile(r.path, []byte(b.String()), 0644); err != nil {
		return fmt.Errorf("writing threat report: %w", err)
	}
	r.logger.Printf("Threat report written to %s (%d flagged files)", r.path, len(flagged))
	return nil
}
