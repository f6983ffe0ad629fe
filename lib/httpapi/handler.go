// Copyright 2026 The Macaroni Authors
// SPDX-License-Identifier: Apache-2.0

package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/macaroni-sandbox/macaroni/lib/service"
	"github.com/macaroni-sandbox/macaroni/lib/version"
)

// Config configures the gateway handler.
type Config struct {
	// Sandboxes serves the sandbox routes. Required.
	Sandboxes *service.SandboxService

	// Gatherer is exposed at /metrics. Defaults to
	// prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Registerer receives the gateway's request metrics. Nil disables
	// them.
	Registerer prometheus.Registerer

	// Logger for requests. Defaults to slog.Default().
	Logger *slog.Logger
}

type mountRequest struct {
	DestinationPath string `json:"destination_path" validate:"omitempty,startswith=/"`
	HostPath        string `json:"host_path" validate:"required"`
}

type createRequest struct {
	Mounts []mountRequest `json:"mounts" validate:"dive"`
}

type runRequest struct {
	Args []string `json:"args" validate:"required,min=1"`
}

// runResponse is the JSON form of a run result. Output is text.
type runResponse struct {
	ExitCode        int    `json:"exit_code"`
	Stdout          string `json:"stdout"`
	Stderr          string `json:"stderr"`
	StdoutTruncated bool   `json:"stdout_truncated,omitempty"`
	StderrTruncated bool   `json:"stderr_truncated,omitempty"`
	TimedOut        bool   `json:"timed_out,omitempty"`
	DurationMillis  int64  `json:"duration_ms"`
}

type errorResponse struct {
	Error   string            `json:"error"`
	Code    service.Code      `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// handler holds the route implementations.
type handler struct {
	sandboxes *service.SandboxService
	logger    *slog.Logger
}

// New returns the gateway as an http.Handler.
func New(config Config) (http.Handler, error) {
	if config.Sandboxes == nil {
		return nil, errors.New("httpapi: Sandboxes is required")
	}
	if config.Gatherer == nil {
		config.Gatherer = prometheus.DefaultGatherer
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(config.Logger))
	if config.Registerer != nil {
		metrics, err := newRequestMetrics(config.Registerer)
		if err != nil {
			return nil, err
		}
		engine.Use(metrics.middleware)
	}
	engine.HandleMethodNotAllowed = true

	h := &handler{sandboxes: config.Sandboxes, logger: config.Logger}

	engine.GET("/health", h.health)
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(config.Gatherer, promhttp.HandlerOpts{})))

	v1 := engine.Group("/v1")
	v1.POST("/sandboxes", h.create)
	v1.GET("/sandboxes", h.list)
	v1.DELETE("/sandboxes/:id", h.destroy)
	v1.POST("/sandboxes/:id/run", h.run)

	engine.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, service.CodeNotFound, "no such route", nil)
	})
	return engine, nil
}

func (h *handler) health(c *gin.Context) {
	status := h.sandboxes.Status()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   version.Short(),
		"sandboxes": status.Sandboxes,
	})
}

func (h *handler) create(c *gin.Context) {
	var req createRequest
	if !bindJSON(c, &req, true) {
		return
	}
	mounts := make([]service.MountSpec, 0, len(req.Mounts))
	for _, m := range req.Mounts {
		mounts = append(mounts, service.MountSpec{DestinationPath: m.DestinationPath, HostPath: m.HostPath})
	}

	response, err := h.sandboxes.Create(c.Request.Context(), service.CreateRequest{Mounts: mounts})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, response)
}

func (h *handler) list(c *gin.Context) {
	c.JSON(http.StatusOK, h.sandboxes.List())
}

func (h *handler) destroy(c *gin.Context) {
	err := h.sandboxes.Destroy(c.Request.Context(), service.SandboxRequest{ID: c.Param("id")})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) run(c *gin.Context) {
	var req runRequest
	if !bindJSON(c, &req, false) {
		return
	}
	result, err := h.sandboxes.RunCommand(c.Request.Context(), service.RunCommandRequest{
		ID:   c.Param("id"),
		Args: req.Args,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, runResponse{
		ExitCode:        result.ExitCode,
		Stdout:          string(result.Stdout),
		Stderr:          string(result.Stderr),
		StdoutTruncated: result.StdoutTruncated,
		StderrTruncated: result.StderrTruncated,
		TimedOut:        result.TimedOut,
		DurationMillis:  result.DurationMillis,
	})
}

// bindJSON decodes and validates the request body into req. An empty
// body is accepted as {} when allowEmpty is set. It writes the error
// response itself and reports whether the handler should continue.
func bindJSON(c *gin.Context, req any, allowEmpty bool) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			respondError(c, http.StatusBadRequest, service.CodeInvalidArgument, "invalid request body: "+err.Error(), nil)
			return false
		}
	}
	if err := validateStruct(req); err != nil {
		var validationErr *ValidationError
		if errors.As(err, &validationErr) {
			respondError(c, http.StatusBadRequest, service.CodeInvalidArgument, "validation failed", validationErr.Fields)
		} else {
			respondError(c, http.StatusBadRequest, service.CodeInvalidArgument, err.Error(), nil)
		}
		return false
	}
	return true
}

func respondServiceError(c *gin.Context, err error) {
	code := service.CodeOf(err)
	respondError(c, code.HTTPStatus(), code, err.Error(), nil)
}

func respondError(c *gin.Context, status int, code service.Code, message string, details map[string]string) {
	c.AbortWithStatusJSON(status, errorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// requestLogger logs each request at debug level, and server errors
// at warn.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		status := c.Writer.Status()
		level := slog.LevelDebug
		if status >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"route", c.FullPath(),
			"status", status,
			"duration", time.Since(start),
		)
	}
}

// requestMetrics counts gateway requests by route and status.
type requestMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newRequestMetrics(reg prometheus.Registerer) (*requestMetrics, error) {
	metrics := &requestMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "macaroni",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Gateway requests by method, route, and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "macaroni",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Gateway request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
	for _, collector := range []prometheus.Collector{metrics.requests, metrics.duration} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return metrics, nil
}

func (m *requestMetrics) middleware(c *gin.Context) {
	start := time.Now()
	c.Next()
	route := c.FullPath()
	if route == "" {
		route = "unmatched"
	}
	m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
	m.duration.WithLabelValues(route).Observe(time.Since(start).Seconds())
}
