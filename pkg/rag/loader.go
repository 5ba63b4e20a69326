package rag

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/textsplitter"
)

// MetadataSource is the metadata key holding a chunk's source file.
const MetadataSource = "source"

// ErrNoDocuments is returned when a directory has no loadable files.
var ErrNoDocuments = errors.New("no documents found")

// ChunkOptions controls how files are split.
type ChunkOptions struct {
	Size    int
	Overlap int
	// Extensions lists the file suffixes to load. Default: .txt and .md.
	Extensions []string
}

// DefaultChunkOptions returns 1000-character chunks overlapping by 200.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{Size: 1000, Overlap: 200}
}

func (o ChunkOptions) splitter() textsplitter.TextSplitter {
	size := o.Size
	if size <= 0 {
		size = DefaultChunkOptions().Size
	}
	overlap := o.Overlap
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
	)
}

func (o ChunkOptions) accepts(path string) bool {
	exts := o.Extensions
	if len(exts) == 0 {
		exts = []string{".txt", ".md"}
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}

// LoadDir walks dir and returns the chunks of every accepted file, in path
// order. Each chunk carries its file path (relative to dir) under
// MetadataSource.
func LoadDir(ctx context.Context, dir string, opts ChunkOptions) ([]schema.Document, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && opts.accepts(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)

	splitter := opts.splitter()
	var chunks []schema.Document
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		docs, err := loadFile(ctx, path, filepath.ToSlash(rel), splitter)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, docs...)
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoDocuments, dir)
	}
	return chunks, nil
}

func loadFile(ctx context.Context, path, source string, splitter textsplitter.TextSplitter) ([]schema.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	docs, err := documentloaders.NewText(f).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for i := range docs {
		if docs[i].Metadata == nil {
			docs[i].Metadata = make(map[string]any)
		}
		docs[i].Metadata[MetadataSource] = source
	}

	chunks, err := textsplitter.SplitDocuments(splitter, docs)
	if err != nil {
		return nil, fmt.Errorf("split %s: %w", path, err)
	}
	return chunks, nil
}
