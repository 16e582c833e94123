// Package ingest turns raw document bytes into page-aware domain documents.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"contractrag/internal/domain"
	"contractrag/internal/logging"
	"contractrag/internal/textutil"
)

// Source is one named document payload.
type Source struct {
	Name string
	Data []byte
}

// Extractor returns the raw text of each page of a document.
type Extractor interface {
	Pages(data []byte) ([]string, error)
}

// Loader converts sources into documents, choosing an extractor by file extension.
type Loader struct {
	logger     *slog.Logger
	extractors map[string]Extractor
	fallback   Extractor
}

// NewLoader returns a loader with the PDF and plain-text extractors registered.
func NewLoader(logger *slog.Logger) *Loader {
	return &Loader{
		logger:     logging.OrDiscard(logger),
		extractors: map[string]Extractor{".pdf": PDFExtractor{}},
		fallback:   TextExtractor{},
	}
}

// Register installs an extractor for a lower-case extension such as ".md".
func (l *Loader) Register(ext string, e Extractor) {
	l.extractors[strings.ToLower(ext)] = e
}

// Load extracts every source. A source that cannot be read yields an empty
// document so the rest of the batch still loads.
func (l *Loader) Load(ctx context.Context, sources []Source) []domain.Document {
	docs := make([]domain.Document, 0, len(sources))
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		doc, err := l.loadOne(src)
		if err != nil {
			l.logger.Warn("document could not be read", "document", src.Name, "error", err)
		}
		docs = append(docs, doc)
	}
	return docs
}

func (l *Loader) loadOne(src Source) (domain.Document, error) {
	doc := domain.Document{Name: src.Name}
	ext := strings.ToLower(filepath.Ext(src.Name))
	extractor, ok := l.extractors[ext]
	if !ok {
		extractor = l.fallback
	}
	raw, err := extractor.Pages(src.Data)
	if err != nil {
		return doc, fmt.Errorf("%w: %s: %v", domain.ErrIngestion, src.Name, err)
	}
	pages := make([]string, len(raw))
	nonEmpty := make([]string, 0, len(raw))
	for i, p := range raw {
		if ext == ".pdf" {
			pages[i] = textutil.Clean(p)
		} else {
			pages[i] = cleanLines(p)
		}
		if pages[i] != "" {
			nonEmpty = append(nonEmpty, pages[i])
		}
	}
	doc.Pages = pages
	doc.PageCount = len(pages)
	doc.FullText = strings.Join(nonEmpty, "\n")
	return doc, nil
}

// cleanLines normalizes each line but keeps paragraph breaks, collapsing runs
// of blank lines into one.
func cleanLines(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = textutil.Clean(line)
		if line == "" {
			if len(out) > 0 && !blank {
				out = append(out, "")
			}
			blank = true
			continue
		}
		blank = false
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// ReadFiles expands glob patterns and reads matching files into sources.
// A pattern with no match is read as a literal path.
func ReadFiles(patterns []string) ([]Source, error) {
	var sources []Source
	for _, p := range patterns {
		matches, _ := filepath.Glob(p)
		if matches == nil {
			matches = []string{p}
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
			}
			if info.IsDir() {
				continue
			}
			data, err := os.ReadFile(m)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", domain.ErrIngestion, err)
			}
			sources = append(sources, Source{Name: filepath.Base(m), Data: data})
		}
	}
	return sources, nil
}
