package book

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"storybind/internal/normalize"
	"storybind/pkg/models"
)

const pdfMediaType = "application/pdf"

// Page geometry in millimetres (A4 portrait).
const (
	pdfPageWidth = 210
	pdfMargin    = 20
)

// PDFGenerator renders a story natively as paginated PDF content: a cover
// page, a title page that always surfaces the author's identity, then one
// page run per chapter with uniform margins. The author image is a hard
// requirement, unlike the EPUB variant.
type PDFGenerator struct {
	meta          *models.StoryMetadata
	chapters      []*normalize.Chapter
	cover         []byte
	chapterImages []map[string][]byte
	authorImage   []byte
	consumed      bool
}

// NewPDF creates a one-shot PDF generator.
func NewPDF(meta *models.StoryMetadata, chapters []*normalize.Chapter, cover []byte, chapterImages []map[string][]byte, authorImage []byte) *PDFGenerator {
	return &PDFGenerator{
		meta:          meta,
		chapters:      chapters,
		cover:         cover,
		chapterImages: chapterImages,
		authorImage:   authorImage,
	}
}

// Compile performs all rendering. Preconditions fail before any page is
// produced; the generator is consumed either way.
func (g *PDFGenerator) Compile() (*Compiled, error) {
	if g.consumed {
		return nil, ErrAlreadyCompiled
	}
	g.consumed = true

	if err := validate(g.meta, g.chapters); err != nil {
		return nil, err
	}
	if len(g.cover) == 0 {
		return nil, ErrMissingCover
	}
	if len(g.authorImage) == 0 {
		return nil, ErrMissingAuthorImage
	}

	data, err := g.render()
	if err != nil {
		return nil, err
	}
	return &Compiled{data: data, mediaType: pdfMediaType}, nil
}

func (g *PDFGenerator) render() ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	contentWidth := float64(pdfPageWidth - 2*pdfMargin)

	// Cover page.
	pdf.AddPage()
	coverOpts := registerImage(pdf, "cover", g.cover)
	pdf.ImageOptions("cover", pdfMargin, pdfMargin, contentWidth, 0, false, coverOpts, 0, "")

	// Title page with author identity.
	pdf.AddPage()
	pdf.Ln(30)
	pdf.SetFont("Helvetica", "B", 24)
	pdf.MultiCell(0, 12, tr(g.meta.Title), "", "C", false)
	pdf.Ln(10)

	authorOpts := registerImage(pdf, "author", g.authorImage)
	const avatarWidth = 40
	pdf.ImageOptions("author", (pdfPageWidth-avatarWidth)/2, pdf.GetY(), avatarWidth, 0, true, authorOpts, 0, "")
	pdf.Ln(6)
	pdf.SetFont("Helvetica", "", 14)
	pdf.MultiCell(0, 8, tr("by "+g.meta.Author.Name), "", "C", false)

	// Chapters, strictly in input order.
	for i, ch := range g.chapters {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 16)
		pdf.MultiCell(0, 9, tr(ch.Ref.Title), "", "L", false)
		pdf.Ln(4)

		pdf.SetFont("Times", "", 12)
		pdf.MultiCell(0, 6, tr(ch.PlainText()), "", "L", false)

		set := imageSet(g.chapterImages, i)
		if set == nil {
			continue
		}
		for j, u := range ch.ImageURLs {
			data, ok := set[u]
			if !ok || len(data) == 0 {
				continue
			}
			name := fmt.Sprintf("ch%03d_%02d", i+1, j)
			opts := registerImage(pdf, name, data)
			pdf.Ln(4)
			pdf.ImageOptions(name, pdfMargin, pdf.GetY(), contentWidth, 0, true, opts, 0, "")
		}
	}

	if pdf.Err() {
		return nil, fmt.Errorf("book: render pdf: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("book: write pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func registerImage(pdf *gofpdf.Fpdf, name string, data []byte) gofpdf.ImageOptions {
	opts := gofpdf.ImageOptions{ImageType: pdfImageType(data), ReadDpi: true}
	pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	return opts
}

func pdfImageType(data []byte) string {
	switch ext, _ := sniffImage(data); ext {
	case ".png":
		return "PNG"
	case ".gif":
		return "GIF"
	default:
		return "JPG"
	}
}
