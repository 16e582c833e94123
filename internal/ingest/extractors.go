package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// TextExtractor treats form feeds as page breaks.
type TextExtractor struct{}

func (TextExtractor) Pages(data []byte) ([]string, error) {
	if !utf8.Valid(data) {
		data = bytes.ToValidUTF8(data, []byte("�"))
	}
	text := string(data)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	return strings.Split(text, "\f"), nil
}

// PDFExtractor reads the plain text of every page of a PDF.
type PDFExtractor struct{}

func (PDFExtractor) Pages(data []byte) (pages []string, err error) {
	// the parser panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("pdf parser: %v", r)
		}
	}()
	if len(data) == 0 {
		return nil, errors.New("empty pdf")
	}
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
