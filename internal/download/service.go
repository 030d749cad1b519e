// Package download sequences one book request end to end: fetch, normalize,
// generate, optionally bridge and package, then stream under a rate limit.
// All stages run on the request context, so a client disconnect cancels
// whatever stage is currently executing, the external converter included.
package download

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"storybind/internal/book"
	"storybind/internal/events"
	"storybind/internal/normalize"
	"storybind/internal/wattpad"
	"storybind/pkg/models"
	"storybind/pkg/utils"
)

// Stage labels one step of the request lifecycle.
type Stage string

const (
	StageFetching    Stage = "fetching"
	StageNormalizing Stage = "normalizing"
	StageGenerating  Stage = "generating"
	StageBridging    Stage = "bridging"
	StagePackaging   Stage = "packaging"
	StageStreaming   Stage = "streaming"
	StageDone        Stage = "done"
	StageFailed      Stage = "failed"
	StageCancelled   Stage = "cancelled"
)

// Provider is the content-provider surface the orchestrator consumes.
// *wattpad.Client implements it.
type Provider interface {
	Login(ctx context.Context, username, password string) (*wattpad.Session, error)
	FetchStoryMetadata(ctx context.Context, storyID int64, session *wattpad.Session) (*models.StoryMetadata, error)
	FetchStoryFromPart(ctx context.Context, partID int64, session *wattpad.Session) (int64, *models.StoryMetadata, error)
	FetchContentArchive(ctx context.Context, storyID int64, session *wattpad.Session) (map[int64]string, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// Bridge converts a finished EPUB artifact to PDF. *convert.Converter
// implements it.
type Bridge interface {
	EPUBToPDF(ctx context.Context, epubData []byte) ([]byte, error)
}

// Notifier receives lifecycle broadcasts. *events.Hub implements it.
type Notifier interface {
	BroadcastJSON(v any)
}

type Service struct {
	Provider Provider
	Bridge   Bridge
	Events   Notifier
	Stream   utils.StreamConfig
}

// Request describes one download.
type Request struct {
	DownloadID string
	TargetID   int64
	Mode       models.Mode
	Format     models.Format
	Images     bool
	Username   string
	Password   string
}

// Result is a fully built, ready-to-stream artifact. Nothing is streamed
// before the whole artifact exists, so a failed build never leaks partial
// bytes to the client.
type Result struct {
	Artifact models.Artifact
	StoryID  int64
	Title    string
}

// Build runs every stage up to (but not including) streaming. Each stage
// observes ctx; the first failure or cancellation aborts the request.
func (s *Service) Build(ctx context.Context, req Request) (*Result, error) {
	if (req.Username == "") != (req.Password == "") {
		return nil, ErrCredentialPair
	}

	s.stage(req, 0, StageFetching)

	var session *wattpad.Session
	if req.Username != "" {
		var err error
		session, err = s.Provider.Login(ctx, req.Username, req.Password)
		if err != nil {
			return nil, err
		}
	}

	storyID := req.TargetID
	var meta *models.StoryMetadata
	var err error
	switch req.Mode {
	case models.ModePart:
		storyID, meta, err = s.Provider.FetchStoryFromPart(ctx, req.TargetID, session)
	default:
		meta, err = s.Provider.FetchStoryMetadata(ctx, storyID, session)
	}
	if err != nil {
		return nil, err
	}

	if meta.CoverURL == "" {
		return nil, ErrCoverUnavailable
	}
	cover, err := s.Provider.FetchImage(ctx, wattpad.UpscaleImageURL(meta.CoverURL))
	if err != nil {
		return nil, err
	}
	if len(cover) == 0 {
		return nil, ErrCoverUnavailable
	}

	archive, err := s.Provider.FetchContentArchive(ctx, storyID, session)
	if err != nil {
		return nil, err
	}

	s.stage(req, storyID, StageNormalizing)

	// One normalized tree per part, strictly in metadata order. A part
	// missing from the archive degrades to a heading-only chapter rather
	// than failing the request.
	chapters := make([]*normalize.Chapter, 0, len(meta.Parts))
	for _, part := range meta.Parts {
		chapters = append(chapters, normalize.Clean(part, archive[part.ID]))
	}

	var chapterImages []map[string][]byte
	if req.Images {
		chapterImages, err = s.fetchChapterImages(ctx, chapters)
		if err != nil {
			return nil, err
		}
	}

	base := artifactBase(meta.Title, storyID, req.Images)

	s.stage(req, storyID, StageGenerating)

	var artifact models.Artifact
	switch req.Format {
	case models.FormatEPUB:
		compiled, err := book.NewEPUB(meta, chapters, cover, chapterImages).Compile()
		if err != nil {
			return nil, err
		}
		artifact = models.Artifact{Data: compiled.Dump(), MediaType: compiled.MediaType(), Filename: base + ".epub"}

	case models.FormatPDF:
		authorImage, err := s.fetchAuthorImage(ctx, meta)
		if err != nil {
			return nil, err
		}
		compiled, err := book.NewPDF(meta, chapters, cover, chapterImages, authorImage).Compile()
		if err != nil {
			return nil, err
		}
		artifact = models.Artifact{Data: compiled.Dump(), MediaType: compiled.MediaType(), Filename: base + ".pdf"}

	case models.FormatEPUBAndPDF:
		compiled, err := book.NewEPUB(meta, chapters, cover, chapterImages).Compile()
		if err != nil {
			return nil, err
		}
		epubData := compiled.Dump()

		// Never hand a cancelled request to the external converter.
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.stage(req, storyID, StageBridging)
		pdfData, err := s.Bridge.EPUBToPDF(ctx, epubData)
		if err != nil {
			return nil, err
		}

		s.stage(req, storyID, StagePackaging)
		bundle, err := buildBundle([]models.Artifact{
			{Data: epubData, Filename: base + ".epub"},
			{Data: pdfData, Filename: base + ".pdf"},
		})
		if err != nil {
			return nil, err
		}
		artifact = models.Artifact{Data: bundle, MediaType: "application/zip", Filename: base + "_epub_and_pdf.zip"}

	case models.FormatBoth:
		epubCompiled, err := book.NewEPUB(meta, chapters, cover, chapterImages).Compile()
		if err != nil {
			return nil, err
		}

		authorImage, err := s.fetchAuthorImage(ctx, meta)
		if err != nil {
			return nil, err
		}
		pdfCompiled, err := book.NewPDF(meta, chapters, cover, chapterImages, authorImage).Compile()
		if err != nil {
			return nil, err
		}

		s.stage(req, storyID, StagePackaging)
		bundle, err := buildBundle([]models.Artifact{
			{Data: epubCompiled.Dump(), Filename: base + ".epub"},
			{Data: pdfCompiled.Dump(), Filename: base + ".pdf"},
		})
		if err != nil {
			return nil, err
		}
		artifact = models.Artifact{Data: bundle, MediaType: "application/zip", Filename: base + "_both_formats.zip"}

	default:
		return nil, fmt.Errorf("download: unsupported format %q", req.Format)
	}

	return &Result{Artifact: artifact, StoryID: storyID, Title: meta.Title}, nil
}

// fetchAuthorImage retrieves the author avatar required by the PDF
// generator. Absence is an asset-missing failure distinct from the cover.
func (s *Service) fetchAuthorImage(ctx context.Context, meta *models.StoryMetadata) ([]byte, error) {
	if meta.Author.AvatarURL == "" {
		return nil, ErrAuthorImageUnavailable
	}
	data, err := s.Provider.FetchImage(ctx, wattpad.UpscaleImageURL(meta.Author.AvatarURL))
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrAuthorImageUnavailable
	}
	return data, nil
}

// fetchChapterImages fetches every discovered image reference, one set per
// chapter aligned by position. Chapters have no data dependency on each
// other, so their fetches run concurrently; an individual image that fails
// to fetch is dropped from its set rather than failing the request.
func (s *Service) fetchChapterImages(ctx context.Context, chapters []*normalize.Chapter) ([]map[string][]byte, error) {
	sets := make([]map[string][]byte, len(chapters))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i, ch := range chapters {
		if len(ch.ImageURLs) == 0 {
			continue
		}
		g.Go(func() error {
			set := make(map[string][]byte, len(ch.ImageURLs))
			for _, u := range ch.ImageURLs {
				if err := ctx.Err(); err != nil {
					return err
				}
				data, err := s.Provider.FetchImage(ctx, u)
				if err != nil || len(data) == 0 {
					continue
				}
				set[u] = data
			}
			sets[i] = set
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return sets, nil
}

// stage logs and broadcasts one lifecycle transition.
func (s *Service) stage(req Request, storyID int64, st Stage) {
	log.Printf("[download] %s story=%d format=%s stage=%s", req.DownloadID, storyID, req.Format, st)
	if s.Events != nil {
		s.Events.BroadcastJSON(events.DownloadEvent{
			Type:       "download.stage",
			DownloadID: req.DownloadID,
			StoryID:    storyID,
			Stage:      string(st),
			Format:     string(req.Format),
			At:         time.Now(),
		})
	}
}

// artifactBase derives the deterministic artifact filename stem:
// {slug}_{storyID}[_images].
func artifactBase(title string, storyID int64, images bool) string {
	base := fmt.Sprintf("%s_%d", utils.Slugify(title), storyID)
	if images {
		base += "_images"
	}
	return base
}
