package main

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/viant/memindex/memory"
)

// scanSources walks base for markdown files and builds a manifest of index
// entries. The first path component under base becomes the spec folder; the
// remainder is the file path stored with the record. Hidden directories and
// files are skipped. The manifest is sorted for stable dry-run output.
func scanSources(base string) ([]memory.FileEntry, error) {
	var entries []memory.FileEntry
	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != base && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !strings.EqualFold(filepath.Ext(name), ".md") {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		folder, file, found := strings.Cut(rel, "/")
		if !found {
			folder, file = "", rel
		}
		entries = append(entries, memory.FileEntry{
			SpecFolder: folder,
			FilePath:   rel,
			AnchorID:   anchorFromPath(file),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", base, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].FilePath < entries[j].FilePath })
	return entries, nil
}

// anchorFromPath derives a stable anchor from the file name: the base name
// without extension, lowercased, path separators collapsed to dashes.
func anchorFromPath(file string) string {
	base := strings.TrimSuffix(file, filepath.Ext(file))
	base = strings.ReplaceAll(base, "/", "-")
	return strings.ToLower(base)
}
