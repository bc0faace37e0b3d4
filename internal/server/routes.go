package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bobmcallan/portwatch/internal/common"
)

// ErrorResponse is the standard error format for REST API responses.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// writeError writes a JSON error response.
func writeError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, ErrorResponse{Error: message})
}

// registerRoutes sets up all REST API routes on the router.
func (s *Server) registerRoutes(r *gin.Engine) {
	// System
	r.GET("/api/health", s.handleHealth)
	r.HEAD("/api/health", s.handleHealth)
	r.GET("/api/version", s.handleVersion)
	if s.app.Metrics != nil {
		r.GET("/metrics", gin.WrapH(s.app.Metrics.Handler()))
	}

	// Refresh
	r.POST("/api/refresh", s.handleRefresh)
	r.POST("/api/cron/refresh", cronAuthMiddleware(s.app.Config.Auth.CronSecret, s.logger), s.handleCronRefresh)

	// Stocks
	r.POST("/api/stocks/lookup", s.handleStockLookup)
	r.GET("/api/stocks/:symbol", s.handleStockGet)
	r.GET("/api/stocks/:symbol/refresh-log", s.handleStockRefreshLog)

	r.NoRoute(func(c *gin.Context) {
		writeError(c, http.StatusNotFound, "Not found")
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, common.CurrentBuild())
}
