package download

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"storybind/internal/book"
	"storybind/internal/convert"
	"storybind/internal/events"
	"storybind/internal/wattpad"
	"storybind/pkg/models"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"story not found", wattpad.ErrStoryNotFound, http.StatusNotFound},
		{"rate limited", wattpad.ErrRateLimited, http.StatusTooManyRequests},
		{"bad credentials", wattpad.ErrBadCredentials, http.StatusForbidden},
		{"credential pair", ErrCredentialPair, http.StatusUnprocessableEntity},
		{"cover unavailable", ErrCoverUnavailable, http.StatusUnprocessableEntity},
		{"missing cover", book.ErrMissingCover, http.StatusUnprocessableEntity},
		{"author image unavailable", ErrAuthorImageUnavailable, http.StatusUnprocessableEntity},
		{"missing author image", book.ErrMissingAuthorImage, http.StatusUnprocessableEntity},
		{"converter not found", convert.ErrConverterNotFound, http.StatusServiceUnavailable},
		{"conversion failed", &convert.ConversionError{Stderr: "boom"}, http.StatusInternalServerError},
		{"unknown", errors.New("mystery"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := statusForError(tt.err)
			if status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, status)
			}
			if msg == "" {
				t.Error("Expected a user-facing message")
			}
		})
	}
}

func TestStatusForErrorWrapped(t *testing.T) {
	err := errors.Join(errors.New("fetch story"), wattpad.ErrRateLimited)
	status, _ := statusForError(err)
	if status != http.StatusTooManyRequests {
		t.Errorf("Expected 429 for wrapped rate limit, got %d", status)
	}
}

func TestTerminalStreamStage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Stage
	}{
		{"cancelled", context.Canceled, StageCancelled},
		{"deadline", context.DeadlineExceeded, StageCancelled},
		{"wrapped cancellation", fmt.Errorf("write chunk: %w", context.Canceled), StageCancelled},
		{"write failure", errors.New("broken pipe"), StageFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := terminalStreamStage(tt.err); got != tt.want {
				t.Errorf("Expected stage %s, got %s", tt.want, got)
			}
		})
	}
}

func TestFailPartModeOmitsStoryID(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewHandler(&Service{Events: notifier}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := Request{DownloadID: "d1", TargetID: 77, Mode: models.ModePart, Format: models.FormatEPUB}
	h.fail(c, req, wattpad.ErrStoryNotFound)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if len(notifier.events) != 1 {
		t.Fatalf("Expected 1 terminal event, got %d", len(notifier.events))
	}
	ev, ok := notifier.events[0].(events.DownloadEvent)
	if !ok {
		t.Fatalf("Expected DownloadEvent, got %T", notifier.events[0])
	}
	if ev.Stage != string(StageFailed) {
		t.Errorf("Expected failed stage, got %s", ev.Stage)
	}
	// The target id is a part id here, not a story id.
	if ev.StoryID != 0 {
		t.Errorf("Expected no story id for a failed part-mode request, got %d", ev.StoryID)
	}
}

func TestFailStoryModeKeepsStoryID(t *testing.T) {
	notifier := &fakeNotifier{}
	h := NewHandler(&Service{Events: notifier}, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	req := Request{DownloadID: "d2", TargetID: 42, Mode: models.ModeStory, Format: models.FormatEPUB}
	h.fail(c, req, wattpad.ErrStoryNotFound)

	if len(notifier.events) != 1 {
		t.Fatalf("Expected 1 terminal event, got %d", len(notifier.events))
	}
	ev := notifier.events[0].(events.DownloadEvent)
	if ev.StoryID != 42 {
		t.Errorf("Expected story id 42, got %d", ev.StoryID)
	}
}
