// Package book assembles complete, in-memory e-book artifacts from story
// metadata and normalized chapter trees. Both generators are one-shot:
// Compile performs all fallible assembly exactly once and returns a
// Compiled handle, and Dump exists only on that handle, so a dump before
// (or without) a successful compile is unrepresentable.
package book

import (
	"net/http"

	"storybind/internal/normalize"
	"storybind/pkg/models"
)

// Compiled holds a finished artifact. Its bytes are never regenerated;
// Dump may be called any number of times and always returns the same
// content.
type Compiled struct {
	data      []byte
	mediaType string
}

// Dump returns the artifact bytes. Callers must treat the returned slice
// as read-only.
func (c *Compiled) Dump() []byte { return c.data }

// MediaType returns the artifact's MIME type.
func (c *Compiled) MediaType() string { return c.mediaType }

// Size returns the artifact size in bytes.
func (c *Compiled) Size() int { return len(c.data) }

// validate applies the preconditions shared by both generators.
func validate(meta *models.StoryMetadata, chapters []*normalize.Chapter) error {
	if meta == nil || meta.Title == "" {
		return ErrMissingTitle
	}
	if len(chapters) == 0 {
		return ErrNoChapters
	}
	return nil
}

// imageSet returns the image map aligned to chapter position i, or nil when
// no images were fetched for it.
func imageSet(sets []map[string][]byte, i int) map[string][]byte {
	if i < len(sets) {
		return sets[i]
	}
	return nil
}

// sniffImage classifies image bytes by content, not by URL extension.
func sniffImage(data []byte) (ext, mediaType string) {
	switch http.DetectContentType(data) {
	case "image/png":
		return ".png", "image/png"
	case "image/gif":
		return ".gif", "image/gif"
	default:
		return ".jpg", "image/jpeg"
	}
}
