package loaders

import (
	"bytes"
	"context"
	"io"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
)

// HTMLMarkdownLoader converts HTML to Markdown, keeping headings and lists readable.
type HTMLMarkdownLoader struct{}

// NewHTMLMarkdownLoader creates the primary HTML strategy.
func NewHTMLMarkdownLoader() *HTMLMarkdownLoader {
	return &HTMLMarkdownLoader{}
}

func (l *HTMLMarkdownLoader) Name() string { return "html-markdown" }

func (l *HTMLMarkdownLoader) Extract(ctx context.Context, data []byte) (string, error) {
	return htmltomarkdown.ConvertString(string(data))
}

// HTMLTextLoader strips tags, scripts and styles and keeps the visible text.
type HTMLTextLoader struct{}

// NewHTMLTextLoader creates the tokenizer-based HTML fallback.
func NewHTMLTextLoader() *HTMLTextLoader {
	return &HTMLTextLoader{}
}

func (l *HTMLTextLoader) Name() string { return "html-text" }

func (l *HTMLTextLoader) Extract(ctx context.Context, data []byte) (string, error) {
	return extractText(bytes.NewReader(data))
}

// extractText parses an HTML document and extracts all human-readable text,
// stripping away tags and scripts.
func extractText(body io.Reader) (string, error) {
	z := html.NewTokenizer(body)
	var sb strings.Builder
	var inScript, inStyle bool

	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if z.Err() == io.EOF {
				return sb.String(), nil
			}
			return "", z.Err()
		case html.StartTagToken, html.EndTagToken:
			tn, _ := z.TagName()
			switch string(tn) {
			case "script":
				inScript = tt == html.StartTagToken
			case "style":
				inStyle = tt == html.StartTagToken
			}
		case html.TextToken:
			if inScript || inStyle {
				continue
			}
			if text := strings.TrimSpace(string(z.Text())); text != "" {
				sb.WriteString(text)
				sb.WriteString(" ")
			}
		}
	}
}

// compile-time checks to ensure the HTML strategies implement Strategy
var (
	_ Strategy = (*HTMLMarkdownLoader)(nil)
	_ Strategy = (*HTMLTextLoader)(nil)
)
