// Package convert bridges a finished EPUB artifact to PDF by driving an
// external out-of-process converter. Every conversion runs in its own
// scratch directory that is removed on all exit paths, and the subprocess
// lifetime is tied to the request context: cancelling the request kills
// the converter instead of letting it run to completion.
package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"

	"storybind/pkg/utils"
)

// ErrConverterNotFound indicates the external converter binary is not
// installed or not on PATH. This is a host configuration problem, reported
// distinctly from content errors and never retried.
var ErrConverterNotFound = errors.New("convert: external converter not found")

// ConversionError carries the converter's diagnostic output verbatim. The
// stderr text is for operators; user-facing layers show a generic message.
type ConversionError struct {
	Stderr string
	err    error
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("convert: converter failed: %v", e.err)
}

func (e *ConversionError) Unwrap() error { return e.err }

// Converter invokes the external tool with a fixed set of layout
// parameters. No retries, no alternate engines: a failure is surfaced to
// the caller immediately.
type Converter struct {
	cfg utils.ConverterConfig
}

func New(cfg utils.ConverterConfig) *Converter {
	return &Converter{cfg: cfg}
}

// EPUBToPDF converts EPUB bytes to PDF bytes. The work area is a
// uniquely named directory holding exactly two files, the input EPUB and
// the output PDF, and is never shared across requests.
func (c *Converter) EPUBToPDF(ctx context.Context, epubData []byte) ([]byte, error) {
	dir, err := os.MkdirTemp("", "storybind-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("convert: create scratch dir: %w", err)
	}
	defer os.RemoveAll(dir)

	inPath := filepath.Join(dir, "input.epub")
	outPath := filepath.Join(dir, "output.pdf")

	if err := os.WriteFile(inPath, epubData, 0o600); err != nil {
		return nil, fmt.Errorf("convert: write input epub: %w", err)
	}

	margin := strconv.Itoa(c.cfg.Margin)
	cmd := exec.CommandContext(ctx, c.cfg.Command,
		inPath, outPath,
		"--pdf-engine", c.cfg.PDFEngine,
		"--margin-top", margin,
		"--margin-bottom", margin,
		"--margin-left", margin,
		"--margin-right", margin,
	)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		// A cancelled request kills the subprocess; report the context
		// error, not a tool failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrConverterNotFound
		}
		log.Printf("[convert] %s failed: %v", c.cfg.Command, err)
		return nil, &ConversionError{Stderr: stderr.String(), err: err}
	}

	pdfData, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("convert: read output pdf: %w", err)
	}
	return pdfData, nil
}
