package services

import (
	"bytes"
	"testing"
)

func TestComputeChunkRanges(t *testing.T) {
	tests := []struct {
		name          string
		totalPages    int
		pagesPerChunk int
		want          []PageRange
	}{
		{
			name:          "even split",
			totalPages:    6,
			pagesPerChunk: 2,
			want:          []PageRange{{1, 2}, {3, 4}, {5, 6}},
		},
		{
			name:          "remainder in last chunk",
			totalPages:    10,
			pagesPerChunk: 4,
			want:          []PageRange{{1, 4}, {5, 8}, {9, 10}},
		},
		{
			name:          "single page",
			totalPages:    1,
			pagesPerChunk: 4,
			want:          []PageRange{{1, 1}},
		},
		{
			name:          "chunk larger than document",
			totalPages:    3,
			pagesPerChunk: 10,
			want:          []PageRange{{1, 3}},
		},
		{
			name:          "zero pages",
			totalPages:    0,
			pagesPerChunk: 4,
			want:          nil,
		},
		{
			name:          "default chunk size",
			totalPages:    8,
			pagesPerChunk: 0,
			want:          []PageRange{{1, 4}, {5, 8}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeChunkRanges(tt.totalPages, tt.pagesPerChunk)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d chunks, want %d: %v", len(got), len(tt.want), got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestComputeChunkRangesCoverAllPages(t *testing.T) {
	for _, pages := range []int{1, 4, 5, 17, 100} {
		ranges := ComputeChunkRanges(pages, 4)

		next := 1
		for _, r := range ranges {
			if r.Start != next {
				t.Fatalf("%d pages: gap or overlap at page %d (range %+v)", pages, next, r)
			}
			if r.End < r.Start {
				t.Fatalf("%d pages: inverted range %+v", pages, r)
			}
			next = r.End + 1
		}
		if next != pages+1 {
			t.Errorf("%d pages: ranges end at %d, want %d", pages, next-1, pages)
		}
	}
}

func TestSanitizePDFRemovesTrailingGarbage(t *testing.T) {
	pdf := []byte("%PDF-1.4\nsome pdf body\n%%EOF\n")
	dirty := append(append([]byte{}, pdf...), []byte("<html>error page appended by proxy</html>")...)

	got := sanitizePDF(dirty)
	if !bytes.Equal(got, pdf) {
		t.Errorf("expected trailing garbage removed, got %q", got)
	}
}

func TestSanitizePDFKeepsCleanContent(t *testing.T) {
	pdf := []byte("%PDF-1.4\nsome pdf body\n%%EOF\n")

	got := sanitizePDF(pdf)
	if !bytes.Equal(got, pdf) {
		t.Errorf("clean PDF should pass through unchanged")
	}
}

func TestSanitizePDFIgnoresNonPDF(t *testing.T) {
	content := []byte("just some text with %%EOF in the middle and more after it")

	got := sanitizePDF(content)
	if !bytes.Equal(got, content) {
		t.Errorf("non-PDF content should pass through unchanged")
	}
}

func TestSanitizePDFNoEOFMarker(t *testing.T) {
	content := []byte("%PDF-1.4\ntruncated body without end marker")

	got := sanitizePDF(content)
	if !bytes.Equal(got, content) {
		t.Errorf("PDF without %%%%EOF should pass through unchanged")
	}
}
