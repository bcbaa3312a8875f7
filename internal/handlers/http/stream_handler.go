package http

import (
	stderrors "errors"
	"net/http"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/pkg/errors"
	"streamcast/pkg/validation"

	"github.com/gin-gonic/gin"
)

// StreamHandler exposes the read-only REST surface. All stateful work goes
// through the signaling channel; these endpoints serve directories, stats
// and discovery.
type StreamHandler struct {
	sessions ports.SessionService
	health   *monitoring.HealthChecker
}

func NewStreamHandler(sessions ports.SessionService, health *monitoring.HealthChecker) *StreamHandler {
	return &StreamHandler{
		sessions: sessions,
		health:   health,
	}
}

func (h *StreamHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1")
	{
		api.GET("/streams", h.ListLiveStreams)
		api.GET("/streams/:id", h.GetStream)
		api.GET("/streams/:id/stats", h.GetStreamStats)
		api.GET("/capabilities", h.GetCapabilities)
	}

	router.GET("/healthz", h.Healthz)
	router.GET("/readyz", h.Readyz)
}

func (h *StreamHandler) ListLiveStreams(c *gin.Context) {
	streams, err := h.sessions.ListLiveStreams(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"streams": streams,
		"count":   len(streams),
	})
}

func (h *StreamHandler) GetStream(c *gin.Context) {
	streamID := c.Param("id")
	if err := validation.ValidateStreamID(streamID); err != nil {
		c.Error(errors.NewInvalidArgumentError(err.Error()))
		return
	}

	stream, err := h.sessions.GetStream(c.Request.Context(), domain.StreamID(streamID))
	if err != nil {
		if stderrors.Is(err, domain.ErrStreamNotFound) {
			c.Error(errors.NewNotFoundError("stream"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stream": stream})
}

func (h *StreamHandler) GetStreamStats(c *gin.Context) {
	streamID := c.Param("id")
	if err := validation.ValidateStreamID(streamID); err != nil {
		c.Error(errors.NewInvalidArgumentError(err.Error()))
		return
	}

	stats, err := h.sessions.GetStreamStats(c.Request.Context(), domain.StreamID(streamID))
	if err != nil {
		if stderrors.Is(err, domain.ErrStreamNotFound) {
			c.Error(errors.NewNotFoundError("stream"))
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

// GetCapabilities serves the fixed codec set every room negotiates against.
func (h *StreamHandler) GetCapabilities(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"codecs": domain.DefaultCodecSet()})
}

func (h *StreamHandler) Healthz(c *gin.Context) {
	status := h.health.CheckAll(c.Request.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

func (h *StreamHandler) Readyz(c *gin.Context) {
	if !h.health.IsReady(c.Request.Context()) {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ready": true})
}
