package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/movin/internal/api/models"
	"github.com/jon4hz/movin/internal/app"
	"github.com/jon4hz/movin/internal/config"
	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/jon4hz/movin/internal/video"
	"github.com/jon4hz/movin/internal/view"
)

const (
	sectionKey = "section"

	// MaxUploadSize bounds uploaded photos.
	MaxUploadSize = 20 << 20
)

// Metered action kinds.
const (
	KindEdit    = "edit"
	KindAdvice  = "advice"
	KindAnimate = "animate"
)

type Handler struct {
	app    *app.App
	ai     gemini.Service
	videos *video.Manager
	config *config.Config
}

func New(a *app.App, ai gemini.Service, videos *video.Manager, cfg *config.Config) *Handler {
	return &Handler{
		app:    a,
		ai:     ai,
		videos: videos,
		config: cfg,
	}
}

// Healthz reports liveness.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// State returns the session, the settings and the screen to render.
func (h *Handler) State(c *gin.Context) {
	confirmed, err := h.app.LanguageConfirmed(c.Request.Context())
	if err != nil {
		log.Error("Failed to read language flag", "error", err)
		internalError(c)
		return
	}

	snap := h.app.Snapshot()
	s := h.app.Settings()
	section := currentSection(c)

	c.JSON(http.StatusOK, models.StateResponse{
		Session:           snap,
		Settings:          s,
		LanguageConfirmed: confirmed,
		Section:           section,
		Screen:            view.Resolve(snap, confirmed, section),
		Direction:         view.Direction(s.Language),
		Sections:          view.Sections,
	})
}

// ConfirmLanguage answers the first-run language prompt.
func (h *Handler) ConfirmLanguage(c *gin.Context) {
	var req models.LanguageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if err := h.app.ConfirmLanguage(c.Request.Context(), req.Language); err != nil {
		if errors.Is(err, settings.ErrInvalidSettings) {
			badRequest(c, "Unsupported language")
			return
		}
		log.Error("Failed to confirm language", "error", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"language": req.Language,
	})
}

// SelectSection switches the section shown to this browser.
func (h *Handler) SelectSection(c *gin.Context) {
	section, err := view.ParseSection(c.Param("section"))
	if err != nil {
		badRequest(c, "Unknown section")
		return
	}
	if err := saveSection(c, section); err != nil {
		log.Error("Failed to save session", "error", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"section": section,
	})
}

// Pricing returns the credit price.
func (h *Handler) Pricing(c *gin.Context) {
	c.JSON(http.StatusOK, models.ToPricing(h.app.Settings()))
}

// Register claims a handle for this installation.
func (h *Handler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	rec, err := h.app.Register(c.Request.Context(), req.Handle)
	switch {
	case errors.Is(err, ledger.ErrEmptyHandle):
		badRequest(c, "Handle cannot be empty")
		return
	case errors.Is(err, ledger.ErrHandleTaken):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Handle is already taken",
		})
		return
	case errors.Is(err, app.ErrNotActivated):
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   fmt.Sprintf("@%s was created but could not be activated", rec.Handle),
			"user":    rec,
		})
		return
	case err != nil:
		log.Error("Failed to register handle", "error", err)
		internalError(c)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": fmt.Sprintf("Welcome @%s!", rec.Handle),
		"user":    rec,
	})
}

// EditImage spends a credit and edits the uploaded photo.
func (h *Handler) EditImage(c *gin.Context) {
	img, prompt, ok := h.readUpload(c)
	if !ok {
		return
	}
	if !h.consume(c, KindEdit) {
		return
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	edited, err := h.ai.EditImage(ctx, img, prompt)
	if err != nil {
		aiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"image":   edited.DataURL(),
		"credits": h.app.Snapshot().Credits,
	})
}

// Advise spends a credit and answers the last chat message.
func (h *Handler) Advise(c *gin.Context) {
	var req models.AdviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if err := gemini.ValidateHistory(req.History); err != nil {
		badRequest(c, err.Error())
		return
	}
	if !h.consume(c, KindAdvice) {
		return
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	reply, err := h.ai.Advise(ctx, req.History)
	if err != nil {
		aiError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reply":   gemini.Message{Role: gemini.RoleModel, Text: reply},
		"credits": h.app.Snapshot().Credits,
	})
}

// StartVideo spends a credit and starts animating the uploaded photo.
func (h *Handler) StartVideo(c *gin.Context) {
	img, prompt, ok := h.readUpload(c)
	if !ok {
		return
	}
	if !h.consume(c, KindAnimate) {
		return
	}

	ctx, cancel := h.detached(c)
	defer cancel()

	job, err := h.videos.Start(ctx, h.app.Snapshot().ActiveHandle, img, prompt)
	if err != nil {
		aiError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"job":     models.ToJobResponse(job, time.Now()),
		"credits": h.app.Snapshot().Credits,
	})
}

// VideoStatus reports the state of a video job.
func (h *Handler) VideoStatus(c *gin.Context) {
	job, err := h.videos.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		jobError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"job":     models.ToJobResponse(job, time.Now()),
	})
}

// VideoContent streams a finished video.
func (h *Handler) VideoContent(c *gin.Context) {
	body, contentType, err := h.videos.Content(c.Request.Context(), c.Param("id"))
	if err != nil {
		jobError(c, err)
		return
	}
	defer body.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, body, map[string]string{
		"Cache-Control": "private, max-age=3600",
	})
}

// consume runs the credit gate. On exhaustion the browser is sent to the
// pricing section and the request is answered with 402.
func (h *Handler) consume(c *gin.Context, kind string) bool {
	ok, err := h.app.TryConsume(c.Request.Context(), kind)
	if err != nil {
		internalError(c)
		return false
	}
	if ok {
		return true
	}

	if err := saveSection(c, view.SectionPricing); err != nil {
		log.Error("Failed to save session", "error", err)
	}
	c.JSON(http.StatusPaymentRequired, gin.H{
		"success":  false,
		"error":    "Not enough credits",
		"redirect": view.SectionPricing,
	})
	return false
}

// detached returns a context that outlives the client connection. A paid call
// is never aborted because the browser went away.
func (h *Handler) detached(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.config.Gemini.RequestTimeout)
}

// readUpload reads the multipart image and prompt fields.
func (h *Handler) readUpload(c *gin.Context) (gemini.Image, string, bool) {
	prompt := strings.TrimSpace(c.PostForm("prompt"))
	if prompt == "" {
		badRequest(c, "Prompt is required")
		return gemini.Image{}, "", false
	}

	fh, err := c.FormFile("image")
	if err != nil {
		badRequest(c, "Image is required")
		return gemini.Image{}, "", false
	}
	if fh.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{
			"success": false,
			"error":   "Image is too large",
		})
		return gemini.Image{}, "", false
	}

	f, err := fh.Open()
	if err != nil {
		badRequest(c, "Invalid image")
		return gemini.Image{}, "", false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxUploadSize))
	if err != nil {
		badRequest(c, "Invalid image")
		return gemini.Image{}, "", false
	}

	img, err := gemini.PrepareImage(data, h.config.Gemini.MaxImageDimension)
	if err != nil {
		log.Debug("Rejected upload", "error", err)
		badRequest(c, "Unsupported image")
		return gemini.Image{}, "", false
	}
	return img, prompt, true
}

func currentSection(c *gin.Context) view.Section {
	raw, _ := sessions.Default(c).Get(sectionKey).(string)
	section, err := view.ParseSection(raw)
	if err != nil {
		return view.DefaultSection
	}
	return section
}

func saveSection(c *gin.Context, section view.Section) error {
	session := sessions.Default(c)
	session.Set(sectionKey, string(section))
	return session.Save()
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

func internalError(c *gin.Context) {
	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error":   "Internal server error",
	})
}

func aiError(c *gin.Context, err error) {
	log.Error("AI request failed", "error", err)
	c.JSON(http.StatusBadGateway, gin.H{
		"success": false,
		"error":   "The AI service could not complete the request. Please try again.",
	})
}

func jobError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, video.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Video job not found",
		})
	case errors.Is(err, video.ErrJobNotReady):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "Video is not ready yet",
		})
	case errors.Is(err, gemini.ErrExternalService):
		aiError(c, err)
	default:
		log.Error("Failed to load video job", "error", err)
		internalError(c)
	}
}
