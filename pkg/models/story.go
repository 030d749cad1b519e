package models

// Author identifies the writer of a story as reported by the provider.
type Author struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ChapterRef identifies one part of a story inside the provider's content
// archive. The order of refs in StoryMetadata.Parts is authoritative:
// table-of-contents order = generation order = archive order.
type ChapterRef struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
}

// StoryMetadata is the normalized, internal form of a story entry.
//
// The provider response is mapped into this structure first, then every
// downstream stage (normalize, generate, package) works from this
// representation. Immutable once fetched; owned by one download request.
type StoryMetadata struct {
	ID       int64        `json:"id"`
	Title    string       `json:"title"`
	Author   Author       `json:"author"`
	CoverURL string       `json:"cover_url"`
	Parts    []ChapterRef `json:"parts"`
}

// Artifact is the fully generated byte content of one book in one format.
// Once produced it is only ever read (streamed or embedded in a bundle),
// never regenerated or modified.
type Artifact struct {
	Data      []byte `json:"-"`
	MediaType string `json:"media_type"`
	Filename  string `json:"filename"`
}
