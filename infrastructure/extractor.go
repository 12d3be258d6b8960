package infrastructure

import (
	"bytes"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"
	"github.com/unidoc/unipdf/v3/common/license"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// TextExtractor turns uploaded CV documents into plain text.
type TextExtractor struct {
	log *logrus.Logger
}

// NewTextExtractor registers the unipdf metered key when one is given.
// Without it unipdf may refuse to extract and the ledongthuc reader is used.
func NewTextExtractor(unidocKey string, log *logrus.Logger) *TextExtractor {
	if unidocKey != "" {
		if err := license.SetMeteredKey(unidocKey); err != nil {
			log.WithError(err).Warn("unipdf license rejected, falling back to basic PDF reader")
		}
	}
	return &TextExtractor{log: log}
}

// Extract returns the cleaned text of a .pdf, .docx or .txt document.
func (e *TextExtractor) Extract(filename string, data []byte) (string, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		text, err = e.extractPDF(data)
	case ".docx":
		text, err = extractDocxText(data)
	case ".txt":
		text = string(data)
	default:
		return "", fmt.Errorf("unsupported file type %q", filepath.Ext(filename))
	}
	if err != nil {
		return "", err
	}

	text = CleanText(text)
	if text == "" {
		return "", fmt.Errorf("no text could be extracted from %s", filename)
	}
	e.log.WithFields(logrus.Fields{"file": filename, "chars": len([]rune(text))}).Info("extracted CV text")
	return text, nil
}

func (e *TextExtractor) extractPDF(data []byte) (string, error) {
	text, err := extractTextWithUnipdf(data)
	if err == nil && strings.TrimSpace(text) != "" {
		return text, nil
	}
	e.log.WithError(err).Debug("unipdf extraction failed, trying fallback reader")

	text, err = extractTextWithLedongthuc(data)
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}
	return text, nil
}

func extractTextWithUnipdf(data []byte) (string, error) {
	pdfReader, err := model.NewPdfReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to read PDF: %w", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return "", fmt.Errorf("failed to get page count: %w", err)
	}
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	var sb strings.Builder
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		pageText, err := ex.ExtractText()
		if err != nil {
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractTextWithLedongthuc(data []byte) (string, error) {
	pdfReader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var sb strings.Builder
	for i := 1; i <= pdfReader.NumPage(); i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return stripXMLTags(doc.Editable().GetContent()), nil
}

var (
	xmlTagPattern     = regexp.MustCompile(`<[^>]+>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
	controlPattern    = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
)

// docx returns the raw document.xml body.
func stripXMLTags(s string) string {
	s = strings.ReplaceAll(s, "</w:p>", "\n")
	return xmlTagPattern.ReplaceAllString(s, " ")
}

// CleanText collapses whitespace runs and drops control characters.
func CleanText(text string) string {
	text = whitespacePattern.ReplaceAllString(text, " ")
	text = controlPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}
