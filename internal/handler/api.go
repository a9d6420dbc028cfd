package handler

import (
	"context"
	"errors"
	"net/http"

	"riskscan/internal/artifact"
	"riskscan/internal/models"
	"riskscan/internal/repository"
	"riskscan/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunLookup finds the ledger entry that produced a model.
type RunLookup interface {
	RunByFingerprint(ctx context.Context, fingerprint string) (*models.TrainingRun, error)
}

// Handler handles HTTP requests
type Handler struct {
	analyzer *service.Analyzer
	runs     RunLookup
	logger   *zap.Logger
}

// NewHandler creates a new API handler. runs may be nil when no ledger is configured.
func NewHandler(analyzer *service.Analyzer, runs RunLookup, logger *zap.Logger) *Handler {
	return &Handler{
		analyzer: analyzer,
		runs:     runs,
		logger:   logger,
	}
}

// CORS allows browser clients from any origin.
func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/analyze", h.Analyze)

		api.GET("/health", h.HealthCheck)
		api.GET("/ready", h.Ready)

		api.GET("/model", h.ModelInfo)
		api.POST("/model/reload", h.ReloadModel)
	}
}

// Analyze scores a question set
func (h *Handler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.analyzer.Analyze(c.Request.Context(), &req)
	if err != nil {
		h.analyzeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *Handler) analyzeError(c *gin.Context, err error) {
	var malformed *service.MalformedInputError
	switch {
	case errors.As(err, &malformed):
		h.fail(c, http.StatusBadRequest, malformed.Error())
	case errors.Is(err, artifact.ErrModelUnavailable):
		h.fail(c, http.StatusServiceUnavailable, "model not loaded")
	default:
		h.logger.Error("Failed to analyze question set", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "internal error")
	}
}

// HealthCheck reports liveness and whether a model is loaded
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":       "healthy",
		"model_loaded": h.analyzer.Model() != nil,
	})
}

// Ready returns 503 until a model is loaded
func (h *Handler) Ready(c *gin.Context) {
	if h.analyzer.Model() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not ready", "model_loaded": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "model_loaded": true})
}

// ModelInfo describes the loaded model and the training run behind it
func (h *Handler) ModelInfo(c *gin.Context) {
	status := h.analyzer.Status()
	if !status.Loaded {
		h.fail(c, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	body := gin.H{"model": status.Info}
	if h.runs != nil {
		run, err := h.runs.RunByFingerprint(c.Request.Context(), status.Info.Fingerprint)
		switch {
		case err == nil:
			body["training_run"] = run
		case errors.Is(err, repository.ErrRunNotFound):
		default:
			h.logger.Warn("Failed to look up training run",
				zap.String("fingerprint", status.Info.Fingerprint),
				zap.Error(err))
		}
	}

	c.JSON(http.StatusOK, body)
}

// ReloadModel re-reads the artifact from disk
func (h *Handler) ReloadModel(c *gin.Context) {
	info, err := h.analyzer.Load()
	if err != nil {
		if errors.Is(err, artifact.ErrModelUnavailable) {
			h.fail(c, http.StatusServiceUnavailable, "model not loaded")
			return
		}
		h.logger.Error("Failed to reload model", zap.Error(err))
		h.fail(c, http.StatusInternalServerError, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reloaded", "model": info})
}

func (h *Handler) fail(c *gin.Context, code int, msg string) {
	c.JSON(code, models.ErrorResponse{Error: msg, Status: models.StatusError})
}
