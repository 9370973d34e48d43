// Package extract turns uploaded documents into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"

	"applysharp/internal/errors"
)

const (
	// DefaultMaxFileSize is the per-file upload limit.
	DefaultMaxFileSize = 5 * 1024 * 1024
	// DefaultMinChars is the shortest extraction accepted as readable text.
	DefaultMinChars = 50
)

var pdfMagic = []byte("%PDF-")

// Extractor extracts text from a document body. The label names the
// document in user-facing errors ("CV", "LinkedIn PDF").
type Extractor interface {
	ExtractText(ctx context.Context, label string, data []byte) (string, error)
}

// PDFExtractor reads text-layer PDFs. Scanned image PDFs yield no text
// and are rejected as unreadable.
type PDFExtractor struct {
	maxFileSize int64
	minChars    int
	logger      *errors.Logger
}

// NewPDFExtractor creates an extractor. Zero limits fall back to the defaults.
func NewPDFExtractor(maxFileSize int64, minChars int, logger *errors.Logger) *PDFExtractor {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	if minChars <= 0 {
		minChars = DefaultMinChars
	}
	return &PDFExtractor{maxFileSize: maxFileSize, minChars: minChars, logger: logger}
}

// ExtractText returns the whitespace-normalized text of every page.
func (e *PDFExtractor) ExtractText(ctx context.Context, label string, data []byte) (string, error) {
	if int64(len(data)) > e.maxFileSize {
		return "", errors.NewInvalidInputError(errors.ErrCodeFileTooLarge,
			fmt.Sprintf("%s is too large. Max %d MB.", label, e.maxFileSize/(1024*1024)), nil)
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), pdfMagic) {
		return "", errors.NewInvalidInputError(errors.ErrCodeUnsupportedFormat,
			fmt.Sprintf("%s must be a PDF file.", label), nil)
	}

	text, err := e.readPages(ctx, data)
	if err != nil {
		return "", errors.NewInvalidInputError(errors.ErrCodeUnreadablePDF, unreadableMessage(label), err)
	}

	text = Normalize(text)
	if len([]rune(text)) < e.minChars {
		return "", errors.NewInvalidInputError(errors.ErrCodeUnreadablePDF, unreadableMessage(label), nil)
	}

	if e.logger != nil {
		e.logger.Debug("Extracted document text", "document", label, "bytes", len(data), "chars", len(text))
	}
	return text, nil
}

func (e *PDFExtractor) readPages(ctx context.Context, data []byte) (text string, err error) {
	// The pdf reader panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			if e.logger != nil {
				e.logger.Warn("Skipping unreadable PDF page", "page", i, "error", err)
			}
			continue
		}
		b.WriteString(pageText)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func unreadableMessage(label string) string {
	return fmt.Sprintf("Could not read text from %s. Make sure it's not a scanned image PDF.", label)
}

var (
	horizontalSpace = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	blankLines      = regexp.MustCompile(`\n{3,}`)
)

// Normalize collapses runs of horizontal whitespace, trims every line and
// keeps at most one empty line between paragraphs.
func Normalize(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = horizontalSpace.ReplaceAllString(text, " ")

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text = strings.Join(lines, "\n")
	text = blankLines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
