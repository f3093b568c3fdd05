// Package extract turns document files into plain text for classification.
// Each format has its own source; the registry picks one by extension.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/contractscan/backend/pkg/logger"
)

// Source extracts the text of a single document.
type Source interface {
	Extract(ctx context.Context, path string) (string, error)
}

// PlainTextSource reads the file as-is. Used for .txt documents.
type PlainTextSource struct{}

func (PlainTextSource) Extract(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return string(data), nil
}

// HTMLSource extracts visible text from an HTML document, dropping script,
// style, and navigation chrome.
type HTMLSource struct{}

func (HTMLSource) Extract(_ context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return "", fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}

	doc.Find("script, style, nav, header, footer").Remove()

	return collapseWhitespace(doc.Text()), nil
}

// collapseWhitespace normalizes runs of whitespace to single spaces so text
// length comparisons are not dominated by markup indentation.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Registry routes extraction by file extension.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds the default routing: txt to the plain reader, html and
// htm to the HTML reader. Additional formats register with Register.
func NewRegistry() *Registry {
	r := &Registry{sources: map[string]Source{}}
	r.Register("txt", PlainTextSource{})
	r.Register("html", HTMLSource{})
	r.Register("htm", HTMLSource{})
	return r
}

func (r *Registry) Register(extension string, source Source) {
	r.sources[strings.ToLower(strings.TrimPrefix(extension, "."))] = source
}

// Extract dispatches to the source registered for the file's extension.
func (r *Registry) Extract(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))

	source, ok := r.sources[ext]
	if !ok {
		return "", fmt.Errorf("no text source registered for extension %q", ext)
	}

	text, err := source.Extract(ctx, path)
	if err != nil {
		return "", err
	}

	logger.Debug("extracted document text",
		zap.String("path", path),
		zap.Int("chars", len(text)),
	)

	return text, nil
}
