// Package handler exposes the file service over HTTP. Authenticated routes
// sit behind the JWT middleware; the derived-PDF and Markdown/image routes
// are public so external viewers can embed them.
package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/knowbase/file-backend/config"
	"github.com/knowbase/file-backend/pkg/artifact"
	errdomain "github.com/knowbase/file-backend/pkg/errors"
	"github.com/knowbase/file-backend/pkg/middleware"
	"github.com/knowbase/file-backend/pkg/service"
)

// Handler wires the service into gin routes.
type Handler struct {
	service service.Service
	store   *artifact.Store
	logger  *zap.Logger

	maxUploadSize int64
	authConfig    config.AuthConfig
}

// NewHandler returns a Handler around the given service.
func NewHandler(svc service.Service, store *artifact.Store, cfg *config.AppConfig, log *zap.Logger) *Handler {
	return &Handler{
		service:       svc,
		store:         store,
		logger:        log,
		maxUploadSize: cfg.Server.MaxUploadSize,
		authConfig:    cfg.Auth,
	}
}

// SetupRouter registers every route on the given engine.
func (h *Handler) SetupRouter(r *gin.Engine) {
	r.POST("/api/login", h.Login)

	// Intentionally unauthenticated: the derived PDF and the Markdown/image
	// namespace are consumed by external viewers without a session.
	r.GET("/api/files/:id/pdf", h.DownloadPDF)
	r.GET("/public/md/:name", h.PublicMarkdown)
	r.GET("/public/md/:name/:image", h.PublicImage)
	r.GET("/public/files/:id/md-info", h.PublicMarkdownInfo)

	auth := r.Group("/api", middleware.JWTAuth(h.authConfig))
	{
		auth.GET("/me", h.CurrentUser)
		auth.GET("/files", h.ListFiles)
		auth.GET("/files/:id", h.GetFile)
		auth.PUT("/files/:id", h.UpdateFile)
		auth.DELETE("/files/:id", h.DeleteFile)
		auth.POST("/files/upload", h.UploadFile)
		auth.POST("/files/batch-upload", h.BatchUpload)
		auth.POST("/files/batch-delete", h.BatchDelete)
		auth.GET("/files/:id/download", h.DownloadFile)
		auth.GET("/files/:id/preview", h.PreviewFile)
		auth.GET("/files/:id/markdown", h.FileMarkdown)
		auth.GET("/logs", h.ListOperationLogs)
		auth.GET("/logs/export", h.ExportOperationLogs)
	}
}

// actor builds the audit identity from the request context.
func (h *Handler) actor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID: middleware.UserID(c),
		IP:     c.ClientIP(),
	}
}

// writeError maps domain errors to HTTP statuses. Internal detail stays in
// the server log, the response carries a short reason only.
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errdomain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, errdomain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errdomain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, errdomain.ErrUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// pathID parses the :id route parameter.
func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid file id"})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
