package loaders

import (
	"bytes"
	"context"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// TxtLoader reads plain text and Markdown as-is. Invalid bytes are left for
// the sanitizer to drop.
type TxtLoader struct{}

// NewTxtLoader creates a new TxtLoader.
func NewTxtLoader() *TxtLoader {
	return &TxtLoader{}
}

func (l *TxtLoader) Name() string { return "plain-text" }

func (l *TxtLoader) Extract(ctx context.Context, data []byte) (string, error) {
	return string(bytes.TrimPrefix(data, utf8BOM)), nil
}

// compile-time check to ensure TxtLoader implements the Strategy interface
var _ Strategy = (*TxtLoader)(nil)
