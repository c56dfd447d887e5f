package memory

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/viant/memindex/store"
)

// FileEntry names one source file for bulk indexing. FilePath is stored as
// given; when relative it is read under the bulk base path.
type FileEntry struct {
	SpecFolder string
	FilePath   string
	AnchorID   string
	Title      string
}

// BulkFailure records one entry that could not be indexed.
type BulkFailure struct {
	FilePath string
	Err      error
}

// BulkResult summarizes a bulk indexing pass.
type BulkResult struct {
	Indexed  int
	Pending  int // blank content or degraded backend: metadata only
	Failures []BulkFailure
}

// tally folds the post-index lookup of one entry into the result. A lookup
// error counts as a failure; it must never pass as indexed.
func (r *BulkResult) tally(path string, record *store.MemoryRecord, ok bool, err error) {
	if err != nil {
		r.Failures = append(r.Failures, BulkFailure{FilePath: path, Err: err})
		return
	}
	if ok && record.EmbeddingStatus != store.StatusSuccess {
		r.Pending++
		return
	}
	r.Indexed++
}

type loadedEntry struct {
	entry   FileEntry
	content string
	err     error
}

// BulkIndex reads entries' files with up to workers concurrent readers and
// indexes them through the facade. File reads parallelize; embedding and
// store writes run on a single goroutine so the one loaded model instance
// is never contended and the store observes a single logical writer.
func (x *Index) BulkIndex(ctx context.Context, basePath string, entries []FileEntry, workers int) (*BulkResult, error) {
	if workers <= 0 {
		workers = 4
	}
	jobs := make(chan FileEntry)
	loaded := make(chan loadedEntry)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for entry := range jobs {
				path := entry.FilePath
				if basePath != "" && !filepath.IsAbs(path) {
					path = filepath.Join(basePath, path)
				}
				content, err := os.ReadFile(path)
				loaded <- loadedEntry{entry: entry, content: string(content), err: err}
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, entry := range entries {
			select {
			case jobs <- entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(loaded)
	}()

	result := &BulkResult{}
	for item := range loaded {
		if err := ctx.Err(); err != nil {
			// Drain so reader goroutines can exit.
			continue
		}
		if item.err != nil {
			result.Failures = append(result.Failures, BulkFailure{FilePath: item.entry.FilePath, Err: item.err})
			continue
		}
		id, err := x.IndexContent(ctx, ContentParams{
			SpecFolder: item.entry.SpecFolder,
			FilePath:   item.entry.FilePath,
			AnchorID:   item.entry.AnchorID,
			Title:      item.entry.Title,
			Content:    item.content,
		})
		if err != nil {
			result.Failures = append(result.Failures, BulkFailure{FilePath: item.entry.FilePath, Err: err})
			continue
		}
		record, ok, err := x.store.Get(ctx, id)
		result.tally(item.entry.FilePath, record, ok, err)
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}
