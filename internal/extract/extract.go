// Package extract validates an uploaded PDF and pulls readable text out of it.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"docvoice/internal/apperr"
)

// Document is the extraction outcome.
type Document struct {
	Text      string
	PageCount int
}

// PDFExtractor reads the decoded page content of a PDF through pdfcpu and collects the
// operands of its text-showing operators.
type PDFExtractor struct {
	conf     *model.Configuration
	maxChars int
}

// NewPDFExtractor builds an extractor. maxChars bounds the returned text in runes; zero disables the bound.
func NewPDFExtractor(maxChars int) *PDFExtractor {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PDFExtractor{conf: conf, maxChars: maxChars}
}

// Extract returns the page count and the document text.
func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}

	doc, err := api.ReadAndValidate(bytes.NewReader(data), e.conf)
	if err != nil {
		return Document{}, apperr.Wrap(err, apperr.ExtractionError, "failed to read PDF")
	}

	contents := make([][]byte, 0, doc.PageCount)
	for i := 1; i <= doc.PageCount; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		r, err := pdfcpu.ExtractPageContent(doc, i)
		if err != nil {
			return Document{}, apperr.Wrap(err, apperr.ExtractionError, fmt.Sprintf("failed to read page %d", i))
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return Document{}, apperr.Wrap(err, apperr.ExtractionError, fmt.Sprintf("failed to read page %d", i))
		}
		contents = append(contents, b)
	}

	text := Text(contents)
	if text == "" {
		return Document{}, apperr.WithDetails(
			apperr.New(apperr.ExtractionError, "failed to extract text from PDF"),
			"document contains no readable text",
		)
	}
	return Document{Text: clip(text, e.maxChars), PageCount: doc.PageCount}, nil
}

// Text joins the text shown by each decoded page content stream. When no page shows any
// text it returns the printable view of the page content instead.
func Text(pages [][]byte) string {
	var b strings.Builder
	for _, p := range pages {
		showText(&b, p)
		b.WriteByte('\n')
	}
	if out := normalizeSpace(strings.ToValidUTF8(b.String(), "")); out != "" {
		return out
	}
	return normalizeSpace(printable(bytes.Join(pages, []byte("\n"))))
}

func clip(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func printable(data []byte) string {
	valid := strings.ToValidUTF8(string(data), " ")
	return strings.Map(func(r rune) rune {
		if unicode.IsPrint(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, valid)
}

func normalizeSpace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
