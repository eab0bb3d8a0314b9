package services

import (
	"bytes"
	"fmt"
	"log"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfcpumodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFCarver cuts a standalone PDF out of a page range of a larger
// document using pdfcpu. Carving keeps the chunk payload small before
// text extraction and lets a damaged page fail in isolation.
type PDFCarver struct {
	conf *pdfcpumodel.Configuration
}

// NewPDFCarver creates a carver with relaxed validation, which copes
// with the slightly malformed PDFs users actually upload.
func NewPDFCarver() *PDFCarver {
	conf := pdfcpumodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfcpumodel.ValidationRelaxed

	return &PDFCarver{conf: conf}
}

// CarvePageRange returns a new PDF containing only pages start..end
// (1-indexed, inclusive) of the source document.
func (c *PDFCarver) CarvePageRange(content []byte, startPage, endPage int) ([]byte, error) {
	if len(content) == 0 {
		return nil, fmt.Errorf("empty PDF content")
	}
	if startPage < 1 || endPage < startPage {
		return nil, fmt.Errorf("invalid page range: start=%d, end=%d", startPage, endPage)
	}

	content = sanitizePDF(content)

	selected := []string{fmt.Sprintf("%d-%d", startPage, endPage)}

	var out bytes.Buffer
	if err := api.Trim(bytes.NewReader(content), &out, selected, c.conf); err != nil {
		return nil, fmt.Errorf("failed to carve pages %d-%d: %w", startPage, endPage, err)
	}

	log.Printf("PDF Carver: Carved pages %d-%d (%d bytes -> %d bytes)",
		startPage, endPage, len(content), out.Len())

	return out.Bytes(), nil
}

// PageCount returns the page count as seen by pdfcpu. Used as a
// cross-check against the text extractor when counts disagree.
func (c *PDFCarver) PageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)

	count, err := api.PageCount(bytes.NewReader(content), c.conf)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages: %w", err)
	}

	return count, nil
}
