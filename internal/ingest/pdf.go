package ingest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragpdf/internal/logger"
)

// ErrNoExtractableText is returned by callers that refuse documents without text
// (for example scanned, image-only PDFs).
var ErrNoExtractableText = errors.New("no extractable text found in PDF")

// ParseError reports a document that could not be read as a PDF at all.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return "parse pdf: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

// Document is the text of one uploaded PDF, one entry per page in page order.
type Document struct {
	Name  string
	Pages []string
}

// Text concatenates the page texts with no separator.
func (d Document) Text() string {
	return strings.Join(d.Pages, "")
}

// EmptyPages counts pages that yielded no text.
func (d Document) EmptyPages() int {
	n := 0
	for _, p := range d.Pages {
		if p == "" {
			n++
		}
	}
	return n
}

// pageSource yields the plain text of 1-indexed pages.
type pageSource interface {
	NumPage() int
	PageText(num int) (string, error)
}

type pdfSource struct {
	reader *pdf.Reader
	fonts  map[string]*pdf.Font
}

func (s *pdfSource) NumPage() int { return s.reader.NumPage() }

func (s *pdfSource) PageText(num int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("page %d: %v", num, r)
		}
	}()
	p := s.reader.Page(num)
	if p.V.IsNull() {
		return "", nil
	}
	// cache fonts so charmaps are parsed once per document
	for _, name := range p.Fonts() {
		if _, ok := s.fonts[name]; !ok {
			f := p.Font(name)
			s.fonts[name] = &f
		}
	}
	return p.GetPlainText(s.fonts)
}

// Extract reads a PDF of the given size. Pages without extractable text contribute
// an empty string; only an unreadable document is an error.
func Extract(ctx context.Context, name string, r io.ReaderAt, size int64) (doc Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &ParseError{Err: fmt.Errorf("%v", rec)}
		}
	}()
	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return Document{}, &ParseError{Err: err}
	}
	return extractPages(ctx, name, &pdfSource{reader: reader, fonts: make(map[string]*pdf.Font)}), nil
}

// ExtractBytes is Extract over an in-memory upload.
func ExtractBytes(ctx context.Context, name string, data []byte) (Document, error) {
	return Extract(ctx, name, bytes.NewReader(data), int64(len(data)))
}

// ExtractFile is Extract over a file on disk.
func ExtractFile(ctx context.Context, path string) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return Document{}, err
	}
	return Extract(ctx, filepath.Base(path), f, fi.Size())
}

func extractPages(ctx context.Context, name string, src pageSource) Document {
	log := logger.FromContext(ctx)
	n := src.NumPage()
	pages := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		text, err := src.PageText(i)
		if err != nil {
			log.Warn("page text extraction failed", "document", name, "page", i, "error", err)
			text = ""
		}
		pages = append(pages, text)
	}
	log.Debug("pdf extracted", "document", name, "pages", n)
	return Document{Name: name, Pages: pages}
}
