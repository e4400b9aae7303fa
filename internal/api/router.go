package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"glyphstat/internal/logging"
	"glyphstat/ports"
)

// NewRouter mounts the read-only verdict routes under /api/v1. hub may be
// nil, in which case the event stream is not served.
func NewRouter(ledger ports.LedgerReaderPort, hub *Hub, logger *zap.Logger) *gin.Engine {
	logger = logging.OrNop(logger)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	h := NewVerdictHandler(ledger, logger)
	v1 := r.Group("/api/v1")
	v1.GET("/verdicts", h.ListVerdicts)
	v1.GET("/verdicts/:id", h.GetVerdict)
	v1.GET("/hypotheses/:id/history", h.GetHistory)
	if hub != nil {
		v1.GET("/events", hub.ServeEvents)
	}
	return r
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
