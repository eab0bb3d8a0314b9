package services

import (
	"bytes"
	"fmt"
	"log"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PageRange represents a range of pages (1-indexed, inclusive)
type PageRange struct {
	Start int
	End   int
}

// DefaultPagesPerChunk is the chunk size used when none is configured
const DefaultPagesPerChunk = 4

// PDFExtractor handles PDF text extraction using ledongthuc/pdf
type PDFExtractor struct{}

// NewPDFExtractor creates a new PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// sanitizePDF fixes common PDF issues like trailing garbage data
// Many PDFs downloaded from web have HTML or other data appended after %%EOF
// This function truncates the content at the last valid %%EOF marker
func sanitizePDF(content []byte) []byte {
	if len(content) == 0 {
		return content
	}

	if !bytes.HasPrefix(content, []byte("%PDF-")) {
		return content // Not a PDF, return as-is
	}

	eofMarker := []byte("%%EOF")
	lastEOF := bytes.LastIndex(content, eofMarker)

	if lastEOF == -1 {
		// No %%EOF found - PDF is likely truncated, let the parser complain
		return content
	}

	pdfEnd := lastEOF + len(eofMarker)

	// Trailing newlines after %%EOF are fine
	for pdfEnd < len(content) && (content[pdfEnd] == '\n' || content[pdfEnd] == '\r') {
		pdfEnd++
	}

	if pdfEnd < len(content) {
		extraBytes := len(content) - pdfEnd
		if extraBytes > 10 { // More than just whitespace
			log.Printf("PDF Extractor: Removing %d bytes of trailing garbage after %%EOF", extraBytes)
			return content[:pdfEnd]
		}
	}

	return content
}

// GetPageCount returns the total number of pages in the PDF
func (p *PDFExtractor) GetPageCount(content []byte) (int, error) {
	if len(content) == 0 {
		return 0, fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return 0, fmt.Errorf("failed to parse PDF: %w", err)
	}

	return pdfReader.NumPage(), nil
}

// ExtractText extracts text from all pages of a PDF
func (p *PDFExtractor) ExtractText(content []byte) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	return p.extractPages(pdfReader, 1, numPages), nil
}

// ExtractPageRange extracts text from a specific page range (1-indexed, inclusive)
// For example, ExtractPageRange(content, 1, 4) extracts pages 1, 2, 3, and 4
func (p *PDFExtractor) ExtractPageRange(content []byte, startPage, endPage int) (string, error) {
	if len(content) == 0 {
		return "", fmt.Errorf("empty PDF content")
	}

	content = sanitizePDF(content)
	reader := bytes.NewReader(content)

	pdfReader, err := pdf.NewReader(reader, int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	if numPages == 0 {
		return "", fmt.Errorf("PDF has no pages")
	}

	if startPage < 1 {
		startPage = 1
	}
	if endPage > numPages {
		endPage = numPages
	}
	if startPage > endPage {
		return "", fmt.Errorf("invalid page range: start=%d, end=%d", startPage, endPage)
	}

	return p.extractPages(pdfReader, startPage, endPage), nil
}

// extractPages builds text from the given page span, preferring row
// extraction for structure and falling back to plain text per page.
func (p *PDFExtractor) extractPages(pdfReader *pdf.Reader, startPage, endPage int) string {
	var textBuilder strings.Builder

	for i := startPage; i <= endPage; i++ {
		page := pdfReader.Page(i)
		if page.V.IsNull() {
			log.Printf("PDF Extractor: Page %d is null, skipping", i)
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			text, plainErr := page.GetPlainText(nil)
			if plainErr != nil {
				log.Printf("PDF Extractor: Failed to extract page %d: %v", i, plainErr)
				continue
			}
			textBuilder.WriteString(text)
			textBuilder.WriteString("\n")
			continue
		}

		for _, row := range rows {
			var rowText strings.Builder
			for _, word := range row.Content {
				rowText.WriteString(word.S)
			}
			line := strings.TrimSpace(rowText.String())
			if line != "" {
				textBuilder.WriteString(line)
				textBuilder.WriteString("\n")
			}
		}
		textBuilder.WriteString("\n") // Separate pages
	}

	return strings.TrimSpace(textBuilder.String())
}

// ComputeChunkRanges splits a document into contiguous, non-overlapping
// page ranges. The last chunk absorbs the remainder, so it may be shorter.
// Boundary duplicates are handled downstream by question deduplication,
// not by overlapping pages.
func ComputeChunkRanges(totalPages, pagesPerChunk int) []PageRange {
	if totalPages <= 0 {
		return nil
	}
	if pagesPerChunk <= 0 {
		pagesPerChunk = DefaultPagesPerChunk
	}

	var chunks []PageRange
	for start := 1; start <= totalPages; start += pagesPerChunk {
		end := start + pagesPerChunk - 1
		if end > totalPages {
			end = totalPages
		}
		chunks = append(chunks, PageRange{Start: start, End: end})
	}

	return chunks
}
