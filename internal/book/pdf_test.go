package book

import (
	"bytes"
	"errors"
	"testing"
)

func TestPDFCompile(t *testing.T) {
	meta, chapters := testStory(3)
	img := testPNG(t)

	compiled, err := NewPDF(meta, chapters, img, nil, img).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data := compiled.Dump()
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		t.Errorf("Expected PDF header, got %q", data[:min(8, len(data))])
	}
	if compiled.MediaType() != "application/pdf" {
		t.Errorf("Expected pdf media type, got %q", compiled.MediaType())
	}
	if compiled.Size() == 0 {
		t.Error("Expected non-empty artifact")
	}
}

// countPages counts page objects in the document. "/Type /Pages" (the page
// tree node) also matches the page pattern, so it is subtracted back out.
func countPages(data []byte) int {
	return bytes.Count(data, []byte("/Type /Page")) - bytes.Count(data, []byte("/Type /Pages"))
}

func TestPDFPageCountTracksChapters(t *testing.T) {
	for _, n := range []int{2, 4} {
		meta, chapters := testStory(n)
		img := testPNG(t)

		compiled, err := NewPDF(meta, chapters, img, nil, img).Compile()
		if err != nil {
			t.Fatalf("Compile with %d chapters: %v", n, err)
		}

		// Every chapter opens on its own page, after the cover and
		// title pages.
		if got := countPages(compiled.Dump()); got != n+2 {
			t.Errorf("Expected %d pages for %d chapters, got %d", n+2, n, got)
		}
	}
}

func TestPDFRequiresAuthorImage(t *testing.T) {
	meta, chapters := testStory(1)
	img := testPNG(t)

	_, err := NewPDF(meta, chapters, img, nil, nil).Compile()
	if !errors.Is(err, ErrMissingAuthorImage) {
		t.Errorf("Expected ErrMissingAuthorImage, got %v", err)
	}

	// Missing cover is reported as its own condition, not conflated with
	// the author image.
	_, err = NewPDF(meta, chapters, nil, nil, img).Compile()
	if !errors.Is(err, ErrMissingCover) {
		t.Errorf("Expected ErrMissingCover, got %v", err)
	}
}

func TestPDFDumpIdempotent(t *testing.T) {
	meta, chapters := testStory(2)
	img := testPNG(t)

	compiled, err := NewPDF(meta, chapters, img, nil, img).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !bytes.Equal(compiled.Dump(), compiled.Dump()) {
		t.Error("Expected Dump to return byte-identical output on every call")
	}
}

func TestPDFCompileOneShot(t *testing.T) {
	meta, chapters := testStory(1)
	img := testPNG(t)
	g := NewPDF(meta, chapters, img, nil, img)

	if _, err := g.Compile(); err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	if _, err := g.Compile(); !errors.Is(err, ErrAlreadyCompiled) {
		t.Errorf("Expected ErrAlreadyCompiled on second Compile, got %v", err)
	}
}
