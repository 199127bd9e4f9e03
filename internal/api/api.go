package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/jon4hz/movin/internal/api/auth"
	"github.com/jon4hz/movin/internal/api/handler"
	"github.com/jon4hz/movin/internal/app"
	"github.com/jon4hz/movin/internal/config"
	"github.com/jon4hz/movin/internal/gemini"
	"github.com/jon4hz/movin/internal/metrics"
	"github.com/jon4hz/movin/internal/scheduler"
	"github.com/jon4hz/movin/internal/video"
)

const sessionName = "movin_session"

type Server struct {
	cfg       *config.Config
	ginEngine *gin.Engine
	app       *app.App
	ai        gemini.Service
	videos    *video.Manager
	scheduler *scheduler.Scheduler
}

func New(cfg *config.Config, a *app.App, ai gemini.Service, videos *video.Manager, sched *scheduler.Scheduler) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if a == nil || ai == nil || videos == nil || sched == nil {
		return nil, fmt.Errorf("app, ai service, video manager and scheduler are required")
	}

	s := &Server{
		cfg:       cfg,
		ginEngine: gin.New(),
		app:       a,
		ai:        ai,
		videos:    videos,
		scheduler: sched,
	}
	s.ginEngine.MaxMultipartMemory = handler.MaxUploadSize
	s.ginEngine.Use(gin.Logger(), gin.Recovery(), metrics.Middleware())
	s.ginEngine.Use(gzip.Gzip(gzip.DefaultCompression,
		gzip.WithExcludedPathsRegexs([]string{`^/api/animator/[^/]+/content$`}),
	))

	s.setupSession()
	s.setupRoutes()
	s.setupAdminRoutes()

	return s, nil
}

func (s *Server) setupSession() {
	store := cookie.NewStore([]byte(s.cfg.SessionKey))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   s.cfg.SessionMaxAge,
		HttpOnly: true,
		Secure:   false, // Set to true behind TLS
		SameSite: http.SameSiteLaxMode,
	})
	s.ginEngine.Use(sessions.Sessions(sessionName, store))
}

func (s *Server) setupRoutes() {
	h := handler.New(s.app, s.ai, s.videos, s.cfg)

	s.ginEngine.GET("/healthz", h.Healthz)
	s.ginEngine.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := s.ginEngine.Group("/api")
	api.GET("/state", h.State)
	api.POST("/language", h.ConfirmLanguage)
	api.POST("/view/:section", h.SelectSection)
	api.GET("/pricing", h.Pricing)
	api.POST("/profile", h.Register)

	api.POST("/editor", h.EditImage)
	api.POST("/advisor", h.Advise)
	api.POST("/animator", h.StartVideo)
	api.GET("/animator/:id", h.VideoStatus)
	api.GET("/animator/:id/content", h.VideoContent)
}

func (s *Server) setupAdminRoutes() {
	h := handler.NewAdmin(s.app, s.ai, s.videos, s.scheduler)

	// login is the only admin route reachable in user mode
	s.ginEngine.POST("/admin/login", h.Login)

	adminGroup := s.ginEngine.Group("/admin")
	adminGroup.Use(auth.RequireAdmin(s.app))

	adminGroup.POST("/exit", h.Exit)
	adminGroup.GET("/settings", h.GetSettings)
	adminGroup.PATCH("/settings", h.UpdateSettings)
	adminGroup.POST("/theme", h.SuggestTheme)
	adminGroup.GET("/users", h.Users)
	adminGroup.POST("/credits", h.GrantCredits)
	adminGroup.GET("/jobs", h.Jobs)
}

// Router returns the configured gin engine.
func (s *Server) Router() http.Handler {
	return s.ginEngine
}

// Run serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.Gemini.RequestTimeout + 30*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Movin server listening", "addr", s.cfg.Listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}
