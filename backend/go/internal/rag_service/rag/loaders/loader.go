package loaders

import (
	"Athena/backend/go/internal/rag_service/rag/interfaces"
	"Athena/backend/go/internal/rag_service/rag/ragerr"
	"Athena/backend/go/pkg/logger"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format is a document family that shares one extraction chain.
type Format string

const (
	FormatPDF  Format = "pdf"
	FormatDOCX Format = "docx"
	FormatXLSX Format = "xlsx"
	FormatHTML Format = "html"
	FormatText Format = "text"
)

// Strategy is one interchangeable way of pulling text out of a format.
// It returns non-empty text or an error; it never returns empty text as success.
type Strategy interface {
	Name() string
	Extract(ctx context.Context, data []byte) (string, error)
}

// Chain tries its strategies in priority order and returns the first
// non-empty result.
type Chain struct {
	strategies []Strategy
	log        *logger.Logger
}

// NewChain creates a chain over the given strategies.
func NewChain(log *logger.Logger, strategies ...Strategy) *Chain {
	return &Chain{strategies: strategies, log: log}
}

// Run executes the chain. fileName is only used in error messages.
func (c *Chain) Run(ctx context.Context, fileName string, data []byte) (string, error) {
	failures := make([]string, 0, len(c.strategies))
	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, err := runStrategy(ctx, s, data)
		if err == nil && strings.TrimSpace(text) == "" {
			err = fmt.Errorf("no text produced")
		}
		if err != nil {
			c.log.WithFields(map[string]interface{}{
				"file":     fileName,
				"strategy": s.Name(),
			}).WithErr(err).Debug("extraction strategy failed, trying next")
			failures = append(failures, fmt.Sprintf("%s: %v", s.Name(), err))
			continue
		}
		return text, nil
	}
	return "", fmt.Errorf("%w: %s: %s", ragerr.ErrExtractionFailed, fileName, strings.Join(failures, "; "))
}

// runStrategy converts parser panics into errors so a broken file cannot
// take down the caller.
func runStrategy(ctx context.Context, s Strategy, data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Extract(ctx, data)
}

// Options configures the default strategy chains.
type Options struct {
	MaxPages       int    // page cap for the page-by-page PDF renderer
	DocxLicenseKey string // unioffice metered key; empty disables the unioffice strategy
}

// Router detects a file's format and runs the matching chain.
type Router struct {
	chains map[Format]*Chain
}

var _ interfaces.Extractor = (*Router)(nil)

// NewRouter builds the default chains for every supported format.
func NewRouter(opts Options, log *logger.Logger) *Router {
	if opts.MaxPages <= 0 {
		opts.MaxPages = 200
	}
	return &Router{chains: map[Format]*Chain{
		FormatPDF: NewChain(log,
			NewPdfTextLayer(),
			NewPdfPageRenderer(opts.MaxPages),
			NewPdfRelaxed(),
		),
		FormatDOCX: NewChain(log,
			NewDocxLoader(opts.DocxLicenseKey),
			NewDocxXMLLoader(),
		),
		FormatXLSX: NewChain(log, NewXlsxLoader()),
		FormatHTML: NewChain(log, NewHTMLMarkdownLoader(), NewHTMLTextLoader()),
		FormatText: NewChain(log, NewTxtLoader()),
	}}
}

// WithChain overrides the chain for a format.
func (r *Router) WithChain(format Format, chain *Chain) *Router {
	r.chains[format] = chain
	return r
}

// Extract implements interfaces.Extractor.
func (r *Router) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %s is empty", ragerr.ErrEmptyInput, fileName)
	}
	format, ok := Detect(fileName, data)
	if !ok {
		return "", fmt.Errorf("%w: %s (%s)", ragerr.ErrUnsupportedFormat, fileName, mimetype.Detect(data).String())
	}
	chain, ok := r.chains[format]
	if !ok {
		return "", fmt.Errorf("%w: %s", ragerr.ErrUnsupportedFormat, format)
	}
	return chain.Run(ctx, fileName, data)
}

var extensionFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".xlsx":     FormatXLSX,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".txt":      FormatText,
	".md":       FormatText,
	".markdown": FormatText,
	".csv":      FormatText,
}

// Detect sniffs the content first and falls back to the file extension for
// containers the sniffer cannot tell apart.
func Detect(fileName string, data []byte) (Format, bool) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/pdf"):
		return FormatPDF, true
	case mt.Is("application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return FormatDOCX, true
	case mt.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FormatXLSX, true
	case mt.Is("text/html"):
		return FormatHTML, true
	}

	if f, ok := extensionFormats[strings.ToLower(filepath.Ext(fileName))]; ok {
		return f, true
	}

	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return FormatText, true
		}
	}
	return "", false
}

// SupportedExtension reports whether the file extension maps to a known format.
func SupportedExtension(fileName string) bool {
	_, ok := extensionFormats[strings.ToLower(filepath.Ext(fileName))]
	return ok
}
