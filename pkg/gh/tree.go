package gh

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path"
	"strings"
	"time"

	"docs-sentinel/pkg/fetch"
	"docs-sentinel/pkg/models"

	"github.com/google/go-github/v45/github"
)

const (
	// DefaultAPIBaseURL is the GitHub REST API root.
	DefaultAPIBaseURL = "https://api.github.com"
	// DefaultRawBaseURL serves verbatim file content.
	DefaultRawBaseURL = "https://raw.githubusercontent.com"
)

// ErrTruncatedTree marks a manifest the API could not return in full. A
// truncated manifest cannot be trusted as complete, so the target is skipped
// rather than silently under-mirrored.
var ErrTruncatedTree = errors.New("tree manifest is truncated")

// Resolver fetches the recursive git tree for a target and filters it down
// to the files worth mirroring.
type Resolver struct {
	fetcher     *fetch.Client
	apiBaseURL  string
	rawBaseURL  string
	timeout     time.Duration
	attempts    int
	allowedExts map[string]bool
	logger      *log.Logger
}

// NewResolver creates a tree resolver. allowedExts entries carry their dot
// (".md", ".mdx").
func NewResolver(fetcher *fetch.Client, apiBaseURL, rawBaseURL string, timeout time.Duration, attempts int, allowedExts []string, logger *log.Logger) *Resolver {
	if apiBaseURL == "" {
		apiBaseURL = DefaultAPIBaseURL
	}
	if rawBaseURL == "" {
		rawBaseURL = DefaultRawBaseURL
	}
	exts := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		exts[ext] = true
	}
	return &Resolver{
		fetcher:     fetcher,
		apiBaseURL:  strings.TrimSuffix(apiBaseURL, "/"),
		rawBaseURL:  strings.TrimSuffix(rawBaseURL, "/"),
		timeout:     timeout,
		attempts:    attempts,
		allowedExts: exts,
		logger:      logger,
	}
}

// ResolveTree fetches the recursive manifest for the target and returns the
// selected files in manifest order.
func (r *Resolver) ResolveTree(ctx context.Context, target models.SyncTarget) ([]models.SelectedFile, error) {
	url := fmt.Sprintf("%s/repos/%s/git/trees/%s?recursive=1", r.apiBaseURL, target.Repo, target.Branch)

	var tree github.Tree
	if err := r.fetcher.FetchJSON(ctx, url, r.timeout, r.attempts, &tree); err != nil {
		return nil, fmt.Errorf("fetching tree manifest for %s@%s: %w", target.Repo, target.Branch, err)
	}
	if tree.GetTruncated() {
		return nil, fmt.Errorf("%w: %s@%s", ErrTruncatedTree, target.Repo, target.Branch)
	}

	prefix := target.SourcePath + "/"
	var selected []models.SelectedFile
	for _, entry := range tree.Entries {
		if entry.GetType() != "blob" {
			continue
		}
		entryPath := entry.GetPath()
		if !strings.HasPrefix(entryPath, prefix) {
			continue
		}
		if !r.allowedExts[path.Ext(entryPath)] {
			continue
		}
		selected = append(selected, models.SelectedFile{
			Path:    entryPath,
			RelPath: strings.TrimPrefix(entryPath, prefix),
			RawURL:  fmt.Sprintf("%s/%s/%s/%s", r.rawBaseURL, target.Repo, target.Branch, entryPath),
		})
	}

	r.logger.Printf("[%s] resolved %d files under %s/ (of %d tree entries)",
		target.Name, len(selected), target.SourcePath, len(tree.Entries))
	return selected, nil
}
