package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"anpr-locker/internal/domain/anpr"
	"anpr-locker/internal/region"
	"anpr-locker/internal/repository"
	"anpr-locker/internal/service"
)

const (
	defaultReadingsLimit = 50
	maxReadingsLimit     = 100
)

type Handler struct {
	anprService *service.ANPRService
	regions     *region.Directory
	readings    *repository.ANPRRepository
	log         zerolog.Logger
}

func NewHandler(
	anprService *service.ANPRService,
	regions *region.Directory,
	readings *repository.ANPRRepository,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		anprService: anprService,
		regions:     regions,
		readings:    readings,
		log:         log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	r.GET("/healthz", h.health)

	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/lock", h.getLock)
		public.GET("/regions", h.listRegions)
		public.GET("/readings", h.listReadings)
	}

	// Protected endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.POST("/lock/reset", h.resetLock)
	}
}

type LockStatus struct {
	Locked       bool            `json:"locked"`
	Code         anpr.RegionCode `json:"code,omitempty"`
	Region       string          `json:"region,omitempty"`
	Plate        string          `json:"plate,omitempty"`
	LockedAt     *time.Time      `json:"locked_at,omitempty"`
	ResetPending bool            `json:"reset_pending"`
	Stats        service.Stats   `json:"stats"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) getLock(c *gin.Context) {
	status := LockStatus{
		ResetPending: h.anprService.ResetPending(),
		Stats:        h.anprService.Stats(),
	}
	if lock, ok := h.anprService.Current(); ok {
		status.Locked = true
		status.Code = lock.Code
		status.Region = lock.Region
		status.Plate = lock.Plate
		status.LockedAt = &lock.LockedAt
	}
	c.JSON(http.StatusOK, successResponse(status))
}

func (h *Handler) listRegions(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.regions.Entries()))
}

func (h *Handler) listReadings(c *gin.Context) {
	limit := defaultReadingsLimit
	if l := c.Query("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, errorResponse("limit must be a positive integer"))
			return
		}
		limit = parsed
	}
	if limit > maxReadingsLimit {
		limit = maxReadingsLimit
	}

	readings, err := h.readings.List(c.Request.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to list readings")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusOK, successResponse(readings))
}

func (h *Handler) resetLock(c *gin.Context) {
	h.log.Info().Str("subject", c.GetString(subjectKey)).Msg("reset requested over HTTP")
	h.anprService.RequestReset()
	c.JSON(http.StatusAccepted, gin.H{"status": "reset_requested"})
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
