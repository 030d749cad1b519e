package book

import "errors"

// Sentinel errors returned by the generators' Compile step. All of them
// fire before any assembly work happens, so a failed Compile never leaves
// a partial artifact behind.
var (
	// ErrAlreadyCompiled indicates Compile was called a second time on a
	// one-shot generator.
	ErrAlreadyCompiled = errors.New("book: generator already compiled")

	// ErrMissingCover indicates no cover image bytes were supplied.
	ErrMissingCover = errors.New("book: missing cover image")

	// ErrMissingAuthorImage indicates the PDF generator was built without
	// the required author image. Distinct from ErrMissingCover because the
	// two are fetched independently.
	ErrMissingAuthorImage = errors.New("book: missing author image")

	// ErrMissingTitle indicates the story metadata has an empty title.
	ErrMissingTitle = errors.New("book: story has no title")

	// ErrNoChapters indicates an empty chapter sequence.
	ErrNoChapters = errors.New("book: story has no chapters")
)
