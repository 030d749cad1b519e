package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"storybind/pkg/utils"
)

// streamArtifact writes data in fixed-size chunks with a minimum delay
// before each one. The delay is a per-client bandwidth ceiling, not a
// buffering concern. The context aborts the stream between chunks, so a
// disconnected client stops costing anything within one chunk interval.
func streamArtifact(ctx context.Context, w io.Writer, data []byte, cfg utils.StreamConfig) error {
	flusher, _ := w.(http.Flusher)

	for off := 0; off < len(data); off += cfg.ChunkSize {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.ChunkDelay):
		}

		end := min(off+cfg.ChunkSize, len(data))
		if _, err := w.Write(data[off:end]); err != nil {
			return fmt.Errorf("download: write chunk: %w", err)
		}
		if flusher != nil {
			flusher.Flush()
		}
	}
	return nil
}
