package convert

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"storybind/pkg/utils"
)

// fakeConverter writes a shell script standing in for the external tool and
// returns a Converter configured to run it.
func fakeConverter(t *testing.T, script string) *Converter {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script converter stub requires a POSIX shell")
	}

	path := filepath.Join(t.TempDir(), "fake-convert")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755); err != nil {
		t.Fatalf("write fake converter: %v", err)
	}

	cfg := utils.LoadConverterConfig()
	cfg.Command = path
	return New(cfg)
}

func TestEPUBToPDF(t *testing.T) {
	// Copies input to output: the "PDF" is the input bytes, which is all
	// the bridge contract needs for the success path.
	c := fakeConverter(t, `cp "$1" "$2"`)

	in := []byte("epub-bytes")
	out, err := c.EPUBToPDF(context.Background(), in)
	if err != nil {
		t.Fatalf("EPUBToPDF: %v", err)
	}
	if !bytes.Equal(out, in) {
		t.Errorf("Expected converter output bytes, got %q", out)
	}
}

func TestEPUBToPDFConverterMissing(t *testing.T) {
	cfg := utils.LoadConverterConfig()
	cfg.Command = "definitely-not-an-installed-binary"
	c := New(cfg)

	_, err := c.EPUBToPDF(context.Background(), []byte("x"))
	if !errors.Is(err, ErrConverterNotFound) {
		t.Errorf("Expected ErrConverterNotFound, got %v", err)
	}
}

func TestEPUBToPDFToolFailure(t *testing.T) {
	c := fakeConverter(t, `echo "engine exploded" >&2; exit 3`)

	_, err := c.EPUBToPDF(context.Background(), []byte("x"))

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Expected ConversionError, got %v", err)
	}
	if !bytes.Contains([]byte(convErr.Stderr), []byte("engine exploded")) {
		t.Errorf("Expected stderr preserved verbatim, got %q", convErr.Stderr)
	}
}

func TestEPUBToPDFCancellation(t *testing.T) {
	c := fakeConverter(t, `sleep 10`)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := c.EPUBToPDF(ctx, []byte("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("Expected cancellation to terminate the subprocess promptly")
	}
}
