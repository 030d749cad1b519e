package download

import (
	"archive/zip"
	"bytes"
	"fmt"

	"storybind/pkg/models"
)

// buildBundle compresses the given artifacts into a single zip archive.
// Artifact filenames are already deterministic (slug, story id, images
// marker), so the bundle content is too.
func buildBundle(artifacts []models.Artifact) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, a := range artifacts {
		f, err := zw.Create(a.Filename)
		if err != nil {
			return nil, fmt.Errorf("download: create bundle entry %s: %w", a.Filename, err)
		}
		if _, err := f.Write(a.Data); err != nil {
			return nil, fmt.Errorf("download: write bundle entry %s: %w", a.Filename, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("download: close bundle: %w", err)
	}
	return buf.Bytes(), nil
}
