package book

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"strings"

	"storybind/internal/normalize"
	"storybind/pkg/models"
)

const epubMediaType = "application/epub+zip"

const containerXML = `<?xml version="1.0" encoding="UTF-8"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>
`

// EPUBGenerator assembles an EPUB container: stored mimetype entry first,
// container.xml, OPF package with a spine in chapter order, NCX table of
// contents, cover page, one XHTML document per chapter, and embedded
// chapter images when a per-chapter image set is supplied.
type EPUBGenerator struct {
	meta          *models.StoryMetadata
	chapters      []*normalize.Chapter
	cover         []byte
	chapterImages []map[string][]byte // aligned by position to chapters
	consumed      bool
}

// NewEPUB creates a one-shot EPUB generator. chapterImages maps image URL
// to bytes, one set per chapter aligned by position; it may be nil or
// shorter than the chapter sequence.
func NewEPUB(meta *models.StoryMetadata, chapters []*normalize.Chapter, cover []byte, chapterImages []map[string][]byte) *EPUBGenerator {
	return &EPUBGenerator{
		meta:          meta,
		chapters:      chapters,
		cover:         cover,
		chapterImages: chapterImages,
	}
}

// Compile performs all assembly. It fails before writing anything when a
// precondition does not hold, and consumes the generator either way.
func (g *EPUBGenerator) Compile() (*Compiled, error) {
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

	data, err := g.assemble()
	if err != nil {
		return nil, err
	}
	return &Compiled{data: data, mediaType: epubMediaType}, nil
}

// chapterImage is one embedded image: its source URL and its path inside
// the container.
type chapterImage struct {
	url  string
	path string
	data []byte
}

func (g *EPUBGenerator) assemble() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	// The mimetype entry must be first and stored uncompressed.
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "mimetype", Method: zip.Store})
	if err != nil {
		return nil, fmt.Errorf("book: create mimetype entry: %w", err)
	}
	if _, err := w.Write([]byte(epubMediaType)); err != nil {
		return nil, fmt.Errorf("book: write mimetype entry: %w", err)
	}

	write := func(name, content string) error {
		f, err := zw.Create(name)
		if err != nil {
			return fmt.Errorf("book: create %s: %w", name, err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			return fmt.Errorf("book: write %s: %w", name, err)
		}
		return nil
	}

	if err := write("META-INF/container.xml", containerXML); err != nil {
		return nil, err
	}

	coverExt, coverMedia := sniffImage(g.cover)
	coverPath := "images/cover" + coverExt

	// Collect embedded images per chapter, in each chapter's discovery
	// order so the output is deterministic.
	images := make([][]chapterImage, len(g.chapters))
	for i, ch := range g.chapters {
		set := imageSet(g.chapterImages, i)
		if set == nil {
			continue
		}
		for j, u := range ch.ImageURLs {
			data, ok := set[u]
			if !ok || len(data) == 0 {
				continue
			}
			ext, _ := sniffImage(data)
			images[i] = append(images[i], chapterImage{
				url:  u,
				path: fmt.Sprintf("images/ch%03d_%02d%s", i+1, j, ext),
				data: data,
			})
		}
	}

	if err := write("OEBPS/content.opf", g.buildOPF(coverPath, coverMedia, images)); err != nil {
		return nil, err
	}
	if err := write("OEBPS/toc.ncx", g.buildNCX()); err != nil {
		return nil, err
	}
	if err := write("OEBPS/cover.xhtml", coverXHTML(g.meta.Title, coverPath)); err != nil {
		return nil, err
	}

	f, err := zw.Create("OEBPS/" + coverPath)
	if err != nil {
		return nil, fmt.Errorf("book: create cover image: %w", err)
	}
	if _, err := f.Write(g.cover); err != nil {
		return nil, fmt.Errorf("book: write cover image: %w", err)
	}

	for i, ch := range g.chapters {
		body := ch.BodyXHTML()
		for _, img := range images[i] {
			body = strings.ReplaceAll(body, html.EscapeString(img.url), img.path)

			imgFile, err := zw.Create("OEBPS/" + img.path)
			if err != nil {
				return nil, fmt.Errorf("book: create %s: %w", img.path, err)
			}
			if _, err := imgFile.Write(img.data); err != nil {
				return nil, fmt.Errorf("book: write %s: %w", img.path, err)
			}
		}

		if err := write("OEBPS/"+chapterPath(i), chapterXHTML(ch.Ref.Title, body)); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("book: close container: %w", err)
	}
	return buf.Bytes(), nil
}

func chapterPath(i int) string {
	return fmt.Sprintf("chapter_%03d.xhtml", i+1)
}

// buildOPF writes the package document. Spine order is exactly the input
// chapter order, preceded by the cover page.
func (g *EPUBGenerator) buildOPF(coverPath, coverMedia string, images [][]chapterImage) string {
	esc := html.EscapeString
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="bookid">` + "\n")

	b.WriteString("  <metadata xmlns:dc=\"http://purl.org/dc/elements/1.1/\" xmlns:opf=\"http://www.idpf.org/2007/opf\">\n")
	fmt.Fprintf(&b, "    <dc:identifier id=\"bookid\">urn:storybind:%d</dc:identifier>\n", g.meta.ID)
	fmt.Fprintf(&b, "    <dc:title>%s</dc:title>\n", esc(g.meta.Title))
	fmt.Fprintf(&b, "    <dc:creator opf:role=\"aut\">%s</dc:creator>\n", esc(g.meta.Author.Name))
	b.WriteString("    <dc:language>en</dc:language>\n")
	b.WriteString("    <meta name=\"cover\" content=\"cover-image\"/>\n")
	b.WriteString("  </metadata>\n")

	b.WriteString("  <manifest>\n")
	b.WriteString("    <item id=\"ncx\" href=\"toc.ncx\" media-type=\"application/x-dtbncx+xml\"/>\n")
	b.WriteString("    <item id=\"cover\" href=\"cover.xhtml\" media-type=\"application/xhtml+xml\"/>\n")
	fmt.Fprintf(&b, "    <item id=\"cover-image\" href=\"%s\" media-type=\"%s\"/>\n", coverPath, coverMedia)
	for i := range g.chapters {
		fmt.Fprintf(&b, "    <item id=\"chapter-%03d\" href=\"%s\" media-type=\"application/xhtml+xml\"/>\n", i+1, chapterPath(i))
		for j, img := range images[i] {
			_, media := sniffImage(img.data)
			fmt.Fprintf(&b, "    <item id=\"img-%03d-%02d\" href=\"%s\" media-type=\"%s\"/>\n", i+1, j, img.path, media)
		}
	}
	b.WriteString("  </manifest>\n")

	b.WriteString("  <spine toc=\"ncx\">\n")
	b.WriteString("    <itemref idref=\"cover\" linear=\"no\"/>\n")
	for i := range g.chapters {
		fmt.Fprintf(&b, "    <itemref idref=\"chapter-%03d\"/>\n", i+1)
	}
	b.WriteString("  </spine>\n")

	b.WriteString("  <guide>\n")
	b.WriteString("    <reference type=\"cover\" title=\"Cover\" href=\"cover.xhtml\"/>\n")
	b.WriteString("  </guide>\n")
	b.WriteString("</package>\n")
	return b.String()
}

// buildNCX writes the navigation document with one navPoint per chapter,
// in chapter order.
func (g *EPUBGenerator) buildNCX() string {
	esc := html.EscapeString
	var b strings.Builder

	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	b.WriteString(`<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">` + "\n")
	b.WriteString("  <head>\n")
	fmt.Fprintf(&b, "    <meta name=\"dtb:uid\" content=\"urn:storybind:%d\"/>\n", g.meta.ID)
	b.WriteString("    <meta name=\"dtb:depth\" content=\"1\"/>\n")
	b.WriteString("  </head>\n")
	fmt.Fprintf(&b, "  <docTitle><text>%s</text></docTitle>\n", esc(g.meta.Title))
	b.WriteString("  <navMap>\n")
	for i, ch := range g.chapters {
		fmt.Fprintf(&b, "    <navPoint id=\"navpoint-%03d\" playOrder=\"%d\">\n", i+1, i+1)
		fmt.Fprintf(&b, "      <navLabel><text>%s</text></navLabel>\n", esc(ch.Ref.Title))
		fmt.Fprintf(&b, "      <content src=\"%s\"/>\n", chapterPath(i))
		b.WriteString("    </navPoint>\n")
	}
	b.WriteString("  </navMap>\n")
	b.WriteString("</ncx>\n")
	return b.String()
}

func coverXHTML(title, coverPath string) string {
	esc := html.EscapeString
	return `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + esc(title) + `</title></head>
<body style="margin: 0; text-align: center;">
<img src="` + coverPath + `" alt="cover" style="max-width: 100%;"/>
</body>
</html>
`
}

func chapterXHTML(title, body string) string {
	esc := html.EscapeString
	return `<?xml version="1.0" encoding="utf-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml">
<head><title>` + esc(title) + `</title></head>
<body>
` + body + `
</body>
</html>
`
}
