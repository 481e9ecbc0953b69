package loaders

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/ledongthuc/pdf"
)

func openPdf(data []byte) (*pdf.Reader, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return r, nil
}

// PdfTextLayer reads the document's text layer in one pass.
type PdfTextLayer struct{}

// NewPdfTextLayer creates the primary PDF strategy.
func NewPdfTextLayer() *PdfTextLayer {
	return &PdfTextLayer{}
}

func (s *PdfTextLayer) Name() string { return "pdf-text-layer" }

func (s *PdfTextLayer) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := openPdf(data)
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("read text layer: %w", err)
	}
	return buf.String(), nil
}

// PdfPageRenderer walks every page's content stream and concatenates the
// positioned text runs, starting a new line whenever the baseline moves.
type PdfPageRenderer struct {
	maxPages int
}

// NewPdfPageRenderer creates the page-by-page fallback, capped at maxPages.
func NewPdfPageRenderer(maxPages int) *PdfPageRenderer {
	return &PdfPageRenderer{maxPages: maxPages}
}

func (s *PdfPageRenderer) Name() string { return "pdf-page-renderer" }

func (s *PdfPageRenderer) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := openPdf(data)
	if err != nil {
		return "", err
	}

	pages := r.NumPage()
	if s.maxPages > 0 && pages > s.maxPages {
		pages = s.maxPages
	}

	var sb strings.Builder
	for i := 1; i <= pages; i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		lastY := math.NaN()
		for _, t := range p.Content().Text {
			if !math.IsNaN(lastY) && math.Abs(t.Y-lastY) > 1 {
				sb.WriteByte('\n')
			}
			sb.WriteString(t.S)
			lastY = t.Y
		}
		sb.WriteString("\n\n")
	}
	return sb.String(), nil
}

// PdfRelaxed extracts page by page and skips any page that fails to decode.
type PdfRelaxed struct{}

// NewPdfRelaxed creates the last-resort PDF strategy.
func NewPdfRelaxed() *PdfRelaxed {
	return &PdfRelaxed{}
}

func (s *PdfRelaxed) Name() string { return "pdf-relaxed" }

func (s *PdfRelaxed) Extract(ctx context.Context, data []byte) (string, error) {
	r, err := openPdf(data)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		text, ok := relaxedPage(r, i)
		if !ok {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func relaxedPage(r *pdf.Reader, i int) (text string, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	p := r.Page(i)
	if p.V.IsNull() {
		return "", false
	}
	text, err := p.GetPlainText(nil)
	if err != nil {
		return "", false
	}
	return text, true
}

// compile-time checks to ensure the PDF strategies implement Strategy
var (
	_ Strategy = (*PdfTextLayer)(nil)
	_ Strategy = (*PdfPageRenderer)(nil)
	_ Strategy = (*PdfRelaxed)(nil)
)
