package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/bobmcallan/portwatch/internal/common"
	"github.com/bobmcallan/portwatch/internal/models"
	"github.com/bobmcallan/portwatch/internal/services/schedule"
)

const (
	maxBatchSymbols = 500
	defaultLogLimit = 20
	maxLogLimit     = 500
)

type refreshRequest struct {
	Symbol      string   `json:"symbol"`
	Symbols     []string `json:"symbols"`
	RefreshType string   `json:"refreshType"`
}

type refreshResponse struct {
	OK     bool                  `json:"ok"`
	Result *models.RefreshResult `json:"result"`
}

type cronRequest struct {
	Schedule string `json:"schedule"`
}

type lookupRequest struct {
	Query string `json:"query"`
}

// handleRefresh handles POST /api/refresh. A single symbol returns the
// refresh result; a symbols list runs a batch and returns its summary.
func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	tier, err := models.ParseTier(req.RefreshType)
	if err != nil {
		writeError(c, http.StatusBadRequest, "refreshType must be one of realtime, daily, weekly, quarterly")
		return
	}

	var symbols []string
	if strings.TrimSpace(req.Symbol) != "" {
		symbols = append(symbols, req.Symbol)
	}
	for _, sym := range req.Symbols {
		if strings.TrimSpace(sym) != "" {
			symbols = append(symbols, sym)
		}
	}

	switch {
	case len(symbols) == 0:
		writeError(c, http.StatusBadRequest, "symbol or symbols is required")
	case len(symbols) > maxBatchSymbols:
		writeError(c, http.StatusBadRequest, "too many symbols (max "+strconv.Itoa(maxBatchSymbols)+")")
	case len(symbols) == 1 && len(req.Symbols) == 0:
		result, ok := s.app.Refresh.RefreshTier(c.Request.Context(), symbols[0], tier)
		c.JSON(http.StatusOK, refreshResponse{OK: ok, Result: result})
	default:
		batch := s.app.Refresh.RefreshMany(c.Request.Context(), symbols, tier)
		if s.app.Metrics != nil {
			s.app.Metrics.ObserveBatch(batch)
		}
		c.JSON(http.StatusOK, batch)
	}
}

// handleCronRefresh handles POST /api/cron/refresh.
func (s *Server) handleCronRefresh(c *gin.Context) {
	var req cronRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Schedule) == "" {
		writeError(c, http.StatusBadRequest, "schedule is required")
		return
	}

	outcome, err := s.app.Schedules.Run(c.Request.Context(), req.Schedule)
	if err != nil {
		if errors.Is(err, schedule.ErrUnknownSchedule) {
			writeError(c, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error().Err(err).Str("schedule", req.Schedule).Msg("Cron refresh failed")
		writeError(c, http.StatusInternalServerError, "Scheduled refresh failed")
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// handleStockLookup handles POST /api/stocks/lookup.
func (s *Server) handleStockLookup(c *gin.Context) {
	var req lookupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(c, http.StatusBadRequest, "query is required")
		return
	}

	rec, err := s.app.Refresh.LookupStock(c.Request.Context(), req.Query)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleStockGet handles GET /api/stocks/:symbol.
func (s *Server) handleStockGet(c *gin.Context) {
	rec, err := s.app.Refresh.GetStock(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// handleStockRefreshLog handles GET /api/stocks/:symbol/refresh-log?limit=N.
func (s *Server) handleStockRefreshLog(c *gin.Context) {
	limit := defaultLogLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLogLimit {
			writeError(c, http.StatusBadRequest, "limit must be between 1 and "+strconv.Itoa(maxLogLimit))
			return
		}
		limit = n
	}

	entries, err := s.app.Refresh.RefreshLog(c.Request.Context(), c.Param("symbol"), limit)
	if err != nil {
		s.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": strings.ToUpper(c.Param("symbol")), "entries": entries})
}

// writeServiceError maps service errors to status codes without leaking internals.
func (s *Server) writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrProviderUnavailable), errors.Is(err, common.ErrTimeout):
		writeError(c, http.StatusBadGateway, "Upstream data provider unavailable")
	default:
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		writeError(c, http.StatusInternalServerError, "Internal server error")
	}
}
