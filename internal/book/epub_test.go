package book

import (
	"archive/zip"
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"

	"storybind/internal/normalize"
	"storybind/pkg/models"
)

func testPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 200, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test png: %v", err)
	}
	return buf.Bytes()
}

func testStory(n int) (*models.StoryMetadata, []*normalize.Chapter) {
	meta := &models.StoryMetadata{
		ID:     42,
		Title:  "Test Story",
		Author: models.Author{Name: "jdoe"},
	}
	chapters := make([]*normalize.Chapter, 0, n)
	titles := []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon"}
	for i := 0; i < n; i++ {
		ref := models.ChapterRef{ID: int64(i + 1), Title: titles[i%len(titles)]}
		meta.Parts = append(meta.Parts, ref)
		chapters = append(chapters, normalize.Clean(ref, "<p>body of "+ref.Title+"</p>"))
	}
	return meta, chapters
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open generated epub: %v", err)
	}
	files := make(map[string]string, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		b, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read entry %s: %v", f.Name, err)
		}
		files[f.Name] = string(b)
	}
	return files
}

func TestEPUBCompileStructure(t *testing.T) {
	meta, chapters := testStory(3)
	compiled, err := NewEPUB(meta, chapters, testPNG(t), nil).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	data := compiled.Dump()
	if compiled.MediaType() != "application/epub+zip" {
		t.Errorf("Expected epub media type, got %q", compiled.MediaType())
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open generated epub: %v", err)
	}

	// mimetype must be the first entry and stored uncompressed.
	if len(zr.File) == 0 || zr.File[0].Name != "mimetype" {
		t.Fatalf("Expected first entry to be mimetype")
	}
	if zr.File[0].Method != zip.Store {
		t.Errorf("Expected mimetype to be stored, got method %d", zr.File[0].Method)
	}

	files := readZip(t, data)
	if files["mimetype"] != "application/epub+zip" {
		t.Errorf("Expected epub mimetype content, got %q", files["mimetype"])
	}
	if !strings.Contains(files["META-INF/container.xml"], "OEBPS/content.opf") {
		t.Errorf("Expected container.xml to point at the OPF")
	}
	for _, name := range []string{"OEBPS/content.opf", "OEBPS/toc.ncx", "OEBPS/cover.xhtml", "OEBPS/images/cover.png"} {
		if _, ok := files[name]; !ok {
			t.Errorf("Expected %s in container", name)
		}
	}
}

func TestEPUBChapterOrder(t *testing.T) {
	meta, chapters := testStory(5)
	compiled, err := NewEPUB(meta, chapters, testPNG(t), nil).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	files := readZip(t, compiled.Dump())

	opf := files["OEBPS/content.opf"]
	prev := -1
	for i := range chapters {
		idx := strings.Index(opf, chapterPath(i))
		if idx < 0 {
			t.Fatalf("Expected %s in manifest", chapterPath(i))
		}
		spineIdx := strings.Index(opf, `idref="chapter-00`+string(rune('1'+i))+`"`)
		if spineIdx < prev {
			t.Errorf("Expected spine itemref %d after its predecessor", i)
		}
		prev = spineIdx

		content := files["OEBPS/"+chapterPath(i)]
		if !strings.Contains(content, "body of "+chapters[i].Ref.Title) {
			t.Errorf("Expected chapter %d file to hold chapter %d content", i, i)
		}
	}

	// NCX navpoints follow the same order.
	ncx := files["OEBPS/toc.ncx"]
	last := -1
	for i := range chapters {
		pos := strings.Index(ncx, chapterPath(i))
		if pos < last {
			t.Errorf("Expected NCX entries in chapter order")
		}
		last = pos
	}
}

func TestEPUBEmbedsChapterImages(t *testing.T) {
	img := testPNG(t)
	ref := models.ChapterRef{ID: 1, Title: "Pics"}
	ch := normalize.Clean(ref, `<p>look</p><img src="https://img.example/a.png">`)
	meta := &models.StoryMetadata{ID: 1, Title: "S", Author: models.Author{Name: "a"}, Parts: []models.ChapterRef{ref}}

	sets := []map[string][]byte{{"https://img.example/a.png": img}}
	compiled, err := NewEPUB(meta, []*normalize.Chapter{ch}, img, sets).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	files := readZip(t, compiled.Dump())

	if _, ok := files["OEBPS/images/ch001_00.png"]; !ok {
		t.Errorf("Expected embedded chapter image in container")
	}
	content := files["OEBPS/chapter_001.xhtml"]
	if !strings.Contains(content, `src="images/ch001_00.png"`) {
		t.Errorf("Expected img src rewritten to container path, got %q", content)
	}
	if strings.Contains(content, "img.example") {
		t.Errorf("Expected remote image URL replaced, got %q", content)
	}
}

func TestEPUBDumpIdempotent(t *testing.T) {
	meta, chapters := testStory(2)
	compiled, err := NewEPUB(meta, chapters, testPNG(t), nil).Compile()
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	first := compiled.Dump()
	second := compiled.Dump()
	if !bytes.Equal(first, second) {
		t.Error("Expected Dump to return byte-identical output on every call")
	}
}

func TestEPUBCompileOneShot(t *testing.T) {
	meta, chapters := testStory(1)
	g := NewEPUB(meta, chapters, testPNG(t), nil)

	if _, err := g.Compile(); err != nil {
		t.Fatalf("first Compile: %v", err)
	}
	if _, err := g.Compile(); !errors.Is(err, ErrAlreadyCompiled) {
		t.Errorf("Expected ErrAlreadyCompiled on second Compile, got %v", err)
	}
}

func TestEPUBPreconditions(t *testing.T) {
	meta, chapters := testStory(2)

	if _, err := NewEPUB(meta, chapters, nil, nil).Compile(); !errors.Is(err, ErrMissingCover) {
		t.Errorf("Expected ErrMissingCover, got %v", err)
	}
	if _, err := NewEPUB(meta, nil, testPNG(t), nil).Compile(); !errors.Is(err, ErrNoChapters) {
		t.Errorf("Expected ErrNoChapters, got %v", err)
	}

	untitled := &models.StoryMetadata{ID: 9}
	if _, err := NewEPUB(untitled, chapters, testPNG(t), nil).Compile(); !errors.Is(err, ErrMissingTitle) {
		t.Errorf("Expected ErrMissingTitle, got %v", err)
	}
}
