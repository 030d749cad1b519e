package models

import (
	"fmt"
	"time"
)

// Format selects which book artifact(s) a download request produces.
type Format string

const (
	// FormatEPUB streams a single EPUB artifact.
	FormatEPUB Format = "epub"
	// FormatPDF streams a single natively generated PDF artifact.
	FormatPDF Format = "pdf"
	// FormatEPUBAndPDF streams a zip bundle of the EPUB plus a PDF
	// derived from it through the external converter.
	FormatEPUBAndPDF Format = "epub_and_pdf"
	// FormatBoth streams a zip bundle of the EPUB plus an independently
	// generated native PDF.
	FormatBoth Format = "both"
)

// Mode selects how the download target id is interpreted.
type Mode string

const (
	ModeStory Mode = "story" // id is a story id
	ModePart  Mode = "part"  // id is a part id; the whole story is resolved from it
)

// ParseFormat maps a query-string value onto a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case FormatEPUB, FormatPDF, FormatEPUBAndPDF, FormatBoth:
		return Format(s), nil
	}
	return "", fmt.Errorf("unknown format %q", s)
}

// ParseMode maps a query-string value onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeStory, ModePart:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// DownloadRecord is one row of the download history.
type DownloadRecord struct {
	ID        string    `json:"id"`
	StoryID   int64     `json:"story_id"`
	Title     string    `json:"title"`
	Format    string    `json:"format"`
	Images    bool      `json:"images"`
	Bytes     int64     `json:"bytes"`
	CreatedAt time.Time `json:"created_at"`
}
