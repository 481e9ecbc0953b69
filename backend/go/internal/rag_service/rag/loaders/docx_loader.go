package loaders

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/unidoc/unioffice/v2/common/license"
	"github.com/unidoc/unioffice/v2/document"
)

var (
	licenseOnce sync.Once
	licenseErr  error
)

// DocxLoader 使用 unioffice 读取 Word (.docx) 文件的段落与表格。
// unioffice v2 需要计量许可证，未配置时该策略直接失败，由链上的下一个策略接手。
type DocxLoader struct {
	licenseKey string
}

// NewDocxLoader 创建一个新的 DocxLoader。
func NewDocxLoader(licenseKey string) *DocxLoader {
	return &DocxLoader{licenseKey: licenseKey}
}

func (l *DocxLoader) Name() string { return "docx-unioffice" }

func (l *DocxLoader) Extract(ctx context.Context, data []byte) (string, error) {
	if l.licenseKey == "" {
		return "", errors.New("unioffice license key not configured")
	}
	licenseOnce.Do(func() {
		licenseErr = license.SetMeteredKey(l.licenseKey)
	})
	if licenseErr != nil {
		return "", fmt.Errorf("set unioffice license: %w", licenseErr)
	}

	doc, err := document.Read(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer doc.Close()

	var sb strings.Builder
	writeParagraphs := func(paragraphs []document.Paragraph) {
		for _, p := range paragraphs {
			for _, r := range p.Runs() {
				sb.WriteString(r.Text())
			}
			sb.WriteString("\n")
		}
	}
	writeParagraphs(doc.Paragraphs())
	for _, t := range doc.Tables() {
		for _, row := range t.Rows() {
			for _, cell := range row.Cells() {
				writeParagraphs(cell.Paragraphs())
			}
		}
	}
	return sb.String(), nil
}

// DocxXMLLoader 直接解析 word/document.xml 中的 <w:t> 文本节点，不依赖许可证。
type DocxXMLLoader struct{}

// NewDocxXMLLoader 创建基于原始 XML 的备用策略。
func NewDocxXMLLoader() *DocxXMLLoader {
	return &DocxXMLLoader{}
}

func (l *DocxXMLLoader) Name() string { return "docx-xml" }

func (l *DocxXMLLoader) Extract(ctx context.Context, data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive: %w", err)
	}
	var body *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			body = f
			break
		}
	}
	if body == nil {
		return "", errors.New("word/document.xml not found")
	}
	rc, err := body.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	dec := xml.NewDecoder(rc)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(el)
			}
		}
	}
	return sb.String(), nil
}

// 编译时检查，确保两种 docx 策略都实现了 Strategy 接口
var (
	_ Strategy = (*DocxLoader)(nil)
	_ Strategy = (*DocxXMLLoader)(nil)
)
