package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storybind/internal/book"
	"storybind/internal/convert"
	"storybind/internal/history"
	"storybind/internal/wattpad"
	"storybind/pkg/models"
)

type Handler struct {
	Service *Service
	History *history.Repo
}

func NewHandler(svc *Service, hist *history.Repo) *Handler {
	return &Handler{Service: svc, History: hist}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/download/:id", h.download)
}

func (h *Handler) download(c *gin.Context) {
	targetID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "download id must be numeric"})
		return
	}

	format, err := models.ParseFormat(c.DefaultQuery("format", string(models.FormatEPUB)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	mode, err := models.ParseMode(c.DefaultQuery("mode", string(models.ModeStory)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := Request{
		DownloadID: uuid.NewString(),
		TargetID:   targetID,
		Mode:       mode,
		Format:     format,
		Images:     c.Query("download_images") == "true",
		Username:   c.Query("username"),
		Password:   c.Query("password"),
	}

	ctx := c.Request.Context()
	res, err := h.Service.Build(ctx, req)
	if err != nil {
		h.fail(c, req, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Artifact.Filename))
	c.Header("Content-Type", res.Artifact.MediaType)
	c.Status(http.StatusOK)

	h.Service.stage(req, res.StoryID, StageStreaming)
	if err := streamArtifact(ctx, c.Writer, res.Artifact.Data, h.Service.Stream); err != nil {
		h.Service.stage(req, res.StoryID, terminalStreamStage(err))
		log.Printf("[download] %s stream aborted: %v", req.DownloadID, err)
		return
	}
	h.Service.stage(req, res.StoryID, StageDone)

	h.record(req, res)
}

// terminalStreamStage classifies a streaming error: a cancelled context
// means the client went away, anything else is a delivery failure.
func terminalStreamStage(err error) Stage {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return StageCancelled
	}
	return StageFailed
}

// fail turns a pipeline error into a terminal state: cancelled when the
// client went away, otherwise a reported user-facing response.
func (h *Handler) fail(c *gin.Context, req Request, err error) {
	// In part mode the target id is a part id and the parent story was
	// never resolved, so the terminal event carries no story id.
	storyID := req.TargetID
	if req.Mode == models.ModePart {
		storyID = 0
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.Service.stage(req, storyID, StageCancelled)
		log.Printf("[download] %s cancelled by client", req.DownloadID)
		return
	}

	h.Service.stage(req, storyID, StageFailed)
	log.Printf("[download] %s failed: %v", req.DownloadID, err)

	// Conversion diagnostics are for operators; users get a generic
	// message below.
	var convErr *convert.ConversionError
	if errors.As(err, &convErr) && convErr.Stderr != "" {
		log.Printf("[download] %s converter stderr: %s", req.DownloadID, convErr.Stderr)
	}

	status, msg := statusForError(err)
	c.JSON(status, gin.H{"error": msg})
}

// statusForError maps the pipeline's error taxonomy onto HTTP statuses and
// user-readable messages. None of these conditions is retried.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, wattpad.ErrStoryNotFound):
		return http.StatusNotFound, "this story does not exist, or has been deleted"
	case errors.Is(err, wattpad.ErrRateLimited):
		return http.StatusTooManyRequests, "the provider is overloaded, please try again in a few minutes"
	case errors.Is(err, wattpad.ErrBadCredentials):
		return http.StatusForbidden, "incorrect username and/or password"
	case errors.Is(err, ErrCredentialPair):
		return http.StatusUnprocessableEntity, "include both the username and password, or neither"
	case errors.Is(err, ErrCoverUnavailable), errors.Is(err, book.ErrMissingCover):
		return http.StatusUnprocessableEntity, "the story cover could not be retrieved"
	case errors.Is(err, ErrAuthorImageUnavailable), errors.Is(err, book.ErrMissingAuthorImage):
		return http.StatusUnprocessableEntity, "the author image could not be retrieved"
	case errors.Is(err, convert.ErrConverterNotFound):
		return http.StatusServiceUnavailable, "pdf conversion is not available on this server"
	}

	var convErr *convert.ConversionError
	if errors.As(err, &convErr) {
		return http.StatusInternalServerError, "pdf conversion failed"
	}
	return http.StatusInternalServerError, "something went wrong"
}

// record writes the completed download to history. Best effort: a history
// failure is logged, never surfaced to the client.
func (h *Handler) record(req Request, res *Result) {
	if h.History == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := models.DownloadRecord{
		ID:      req.DownloadID,
		StoryID: res.StoryID,
		Title:   res.Title,
		Format:  string(req.Format),
		Images:  req.Images,
		Bytes:   int64(len(res.Artifact.Data)),
	}
	if err := h.History.Insert(ctx, rec); err != nil {
		log.Printf("[download] %s history insert failed: %v", req.DownloadID, err)
	}
}
