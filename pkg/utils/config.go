package utils

import (
	"os"
	"strconv"
	"time"
)

type ServerConfig struct {
	Addr        string
	WattpadBase string
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("STORYBIND_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	base := os.Getenv("STORYBIND_WATTPAD_BASE")
	if base == "" {
		base = "https://www.wattpad.com"
	}

	return ServerConfig{Addr: addr, WattpadBase: base}
}

// StreamConfig bounds per-client download bandwidth. The defaults give
// roughly 20 KB/s per connection, which is a policy ceiling rather than
// a buffering choice.
type StreamConfig struct {
	ChunkSize  int
	ChunkDelay time.Duration
}

func LoadStreamConfig() StreamConfig {
	cfg := StreamConfig{
		ChunkSize:  2048,
		ChunkDelay: 100 * time.Millisecond,
	}

	if v := os.Getenv("STORYBIND_STREAM_CHUNK_BYTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ChunkSize = n
		}
	}
	if v := os.Getenv("STORYBIND_STREAM_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.ChunkDelay = time.Duration(n) * time.Millisecond
		}
	}
	return cfg
}

// ConverterConfig describes the external EPUB-to-PDF converter invocation.
type ConverterConfig struct {
	Command   string
	PDFEngine string
	Margin    int // uniform page margin, all four sides
}

func LoadConverterConfig() ConverterConfig {
	cfg := ConverterConfig{
		Command:   "ebook-convert",
		PDFEngine: "weasyprint",
		Margin:    50,
	}

	if v := os.Getenv("STORYBIND_CONVERTER_CMD"); v != "" {
		cfg.Command = v
	}
	if v := os.Getenv("STORYBIND_CONVERTER_ENGINE"); v != "" {
		cfg.PDFEngine = v
	}
	if v := os.Getenv("STORYBIND_CONVERTER_MARGIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Margin = n
		}
	}
	return cfg
}
