package handler

import (
	"errors"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/movin/internal/admin"
	"github.com/jon4hz/movin/internal/api/models"
	"github.com/jon4hz/movin/internal/app"
	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/ledger"
	"github.com/jon4hz/movin/internal/scheduler"
	"github.com/jon4hz/movin/internal/settings"
	"github.com/jon4hz/movin/internal/video"
	"github.com/samber/lo"
)

type AdminHandler struct {
	app       *app.App
	ai        gemini.Service
	videos    *video.Manager
	scheduler *scheduler.Scheduler
}

func NewAdmin(a *app.App, ai gemini.Service, videos *video.Manager, sched *scheduler.Scheduler) *AdminHandler {
	return &AdminHandler{
		app:       a,
		ai:        ai,
		videos:    videos,
		scheduler: sched,
	}
}

// Login enters admin mode.
func (h *AdminHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	if err := h.app.Authenticate(req.Password); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error":   "Incorrect password",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mode":    admin.ModeAdmin,
	})
}

// Exit leaves admin mode.
func (h *AdminHandler) Exit(c *gin.Context) {
	h.app.ExitAdmin()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"mode":    admin.ModeUser,
	})
}

// GetSettings returns the current settings.
func (h *AdminHandler) GetSettings(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": h.app.Settings(),
	})
}

// UpdateSettings merges a partial settings object.
func (h *AdminHandler) UpdateSettings(c *gin.Context) {
	var patch settings.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badRequest(c, "Invalid request")
		return
	}
	if patch.IsEmpty() {
		badRequest(c, "No settings provided")
		return
	}

	h.applySettings(c, patch)
}

// GrantCredits adds credits to a handle.
func (h *AdminHandler) GrantCredits(c *gin.Context) {
	var req models.GrantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	rec, err := h.app.GrantCredits(c.Request.Context(), req.Handle, *req.Amount)
	switch {
	case errors.Is(err, ledger.ErrHandleNotFound):
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Not found.",
		})
		return
	case err != nil:
		adminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"user":    rec,
	})
}

// Users lists the ledger.
func (h *AdminHandler) Users(c *gin.Context) {
	users, err := h.app.Users(c.Request.Context())
	if err != nil {
		adminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"users":   users,
		"total": lo.SumBy(users, func(u ledger.UserRecord) int {
			return u.Credits
		}),
	})
}

// SuggestTheme asks the AI for branding and applies it.
func (h *AdminHandler) SuggestTheme(c *gin.Context) {
	var req models.ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	suggestion, err := h.ai.SuggestTheme(c.Request.Context(), req.Request)
	if err != nil {
		aiError(c, err)
		return
	}

	mode := settings.ThemeMode(suggestion.ThemeMode)
	h.applySettings(c, settings.Patch{
		PrimaryColor: &suggestion.PrimaryColor,
		ThemeMode:    &mode,
	})
}

// Jobs reports the scheduled jobs and the video jobs still in progress.
func (h *AdminHandler) Jobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"jobs":        h.scheduler.GetJobs(),
		"pendingJobs": h.videos.Pending(),
		"cacheStats":  h.videos.CacheStats(),
	})
}

func (h *AdminHandler) applySettings(c *gin.Context, patch settings.Patch) {
	updated, err := h.app.UpdateSettings(c.Request.Context(), patch)
	switch {
	case errors.Is(err, settings.ErrInvalidSettings):
		badRequest(c, err.Error())
		return
	case err != nil:
		adminError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"settings": updated,
	})
}

func adminError(c *gin.Context, err error) {
	if errors.Is(err, admin.ErrNotAdmin) {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error":   "forbidden",
		})
		return
	}
	log.Error("Admin request failed", "error", err)
	internalError(c)
}
