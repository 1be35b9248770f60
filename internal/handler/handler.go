package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"pingwatch/internal/browse"
	"pingwatch/internal/domain"
	"pingwatch/internal/probe"
	"pingwatch/internal/service"
)

// Monitor is the command surface the handlers drive
type Monitor interface {
	Ping(ctx context.Context, address string) (domain.ProbeResult, error)
	Browse(ctx context.Context, req service.BrowseRequest) error
	StopBrowse() bool
	BrowseStatus() browse.Status
	SetIgnore(ctx context.Context, ip string, ignore bool) bool
	Interfaces(ctx context.Context) ([]domain.HostInterface, error)
	Tasks() []domain.PingTaskInfo
	Stage(ips []string) ([]domain.DetectedHost, error)
	Save(ctx context.Context) (int, error)
	NotificationSchema() domain.NotificationSchema
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type pingRequest struct {
	Address string `json:"address" binding:"required"`
}

type ignoreRequest struct {
	Ignore *bool `json:"ignore" binding:"required"`
}

type stageRequest struct {
	IPs []string `json:"ips" binding:"required,min=1"`
}

// Handler serves the monitor's HTTP API
type Handler struct {
	mon Monitor
	log logrus.FieldLogger
}

// New creates a handler for mon
func New(mon Monitor, log logrus.FieldLogger) *Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{mon: mon, log: log.WithField("component", "http")}
}

// Router builds the gin engine. events, when set, is served on GET /events.
func (h *Handler) Router(events http.Handler) *gin.Engine {
	r := gin.New()
	r.Use(Recover(h.log), Logger(h.log))

	api := r.Group("/api")
	api.POST("/ping", h.Ping)
	api.GET("/browse", h.BrowseStatus)
	api.POST("/browse", h.Browse)
	api.POST("/browse/stop", h.StopBrowse)
	api.PUT("/browse/hosts/:ip/ignore", h.SetIgnore)
	api.GET("/interfaces", h.Interfaces)
	api.GET("/tasks", h.Tasks)
	api.POST("/devices/stage", h.Stage)
	api.POST("/devices/save", h.Save)
	api.GET("/notifications/schema", h.NotificationSchema)

	if events != nil {
		r.GET("/events", gin.WrapH(events))
	}
	return r
}

// Ping probes one address
func (h *Handler) Ping(c *gin.Context) {
	var req pingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	res, err := h.mon.Ping(c.Request.Context(), req.Address)
	switch {
	case errors.Is(err, domain.ErrInvalidTarget):
		h.writeError(c, http.StatusBadRequest, "invalid address", err)
	case errors.Is(err, probe.ErrUnsupportedPlatform):
		h.writeError(c, http.StatusNotImplemented, "ping not supported on this platform", err)
	case err != nil:
		h.writeError(c, http.StatusInternalServerError, "probe failed", err)
	default:
		c.JSON(http.StatusOK, res)
	}
}

// Browse starts a manual sweep
func (h *Handler) Browse(c *gin.Context) {
	var req service.BrowseRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.writeError(c, http.StatusBadRequest, "invalid request body", err)
			return
		}
	}

	err := h.mon.Browse(c.Request.Context(), req)
	switch {
	case errors.Is(err, browse.ErrBusy):
		h.writeError(c, http.StatusConflict, "browse already running", err)
	case errors.Is(err, browse.ErrRangeTooLarge),
		errors.Is(err, domain.ErrInvalidRange),
		errors.Is(err, service.ErrNoInterface):
		h.writeError(c, http.StatusBadRequest, "cannot browse", err)
	case err != nil:
		h.writeError(c, http.StatusInternalServerError, "browse failed", err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"status": "started"})
	}
}

// StopBrowse stops the running sweep
func (h *Handler) StopBrowse(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"stopped": h.mon.StopBrowse()})
}

// BrowseStatus returns progress and the detected list
func (h *Handler) BrowseStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.mon.BrowseStatus())
}

// SetIgnore flags a detected host
func (h *Handler) SetIgnore(c *gin.Context) {
	var req ignoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	ip := c.Param("ip")
	changed := h.mon.SetIgnore(c.Request.Context(), ip, *req.Ignore)
	c.JSON(http.StatusOK, gin.H{"ip": ip, "ignore": *req.Ignore, "changed": changed})
}

// Interfaces lists host interfaces
func (h *Handler) Interfaces(c *gin.Context) {
	ifaces, err := h.mon.Interfaces(c.Request.Context())
	if err != nil {
		h.writeError(c, http.StatusInternalServerError, "cannot list interfaces", err)
		return
	}
	c.JSON(http.StatusOK, ifaces)
}

// Tasks lists the monitored endpoints
func (h *Handler) Tasks(c *gin.Context) {
	c.JSON(http.StatusOK, h.mon.Tasks())
}

// Stage marks discovered addresses for saving
func (h *Handler) Stage(c *gin.Context) {
	var req stageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.writeError(c, http.StatusBadRequest, "invalid request body", err)
		return
	}
	staged, err := h.mon.Stage(req.IPs)
	if err != nil {
		h.writeError(c, http.StatusBadRequest, "cannot stage", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"staged": staged})
}

// Save promotes staged hosts to devices
func (h *Handler) Save(c *gin.Context) {
	added, err := h.mon.Save(c.Request.Context())
	switch {
	case errors.Is(err, service.ErrNothingStaged):
		h.writeError(c, http.StatusBadRequest, "nothing to save", err)
	case err != nil:
		h.writeError(c, http.StatusInternalServerError, "save failed", err)
	default:
		c.JSON(http.StatusOK, gin.H{"added": added})
	}
}

// NotificationSchema describes the pending new-device notification
func (h *Handler) NotificationSchema(c *gin.Context) {
	c.JSON(http.StatusOK, h.mon.NotificationSchema())
}

func (h *Handler) writeError(c *gin.Context, status int, msg string, err error) {
	if status >= http.StatusInternalServerError {
		h.log.WithError(err).WithField("path", c.FullPath()).Error(msg)
	}
	c.JSON(status, ErrorResponse{Error: msg, Details: err.Error()})
}
