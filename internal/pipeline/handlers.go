package pipeline

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/ksred/insider-api/internal/types"
	"github.com/ksred/insider-api/pkg/response"
)

// GinHandlers contains HTTP handlers for the pipeline endpoints.
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

// TriggerScrapeHandler handles POST requests that kick off an ad-hoc scrape.
// It shares the orchestrator entry point with the scheduler, so manual and
// scheduled runs behave identically.
func (h *GinHandlers) TriggerScrapeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req types.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if len(req.Tickers) == 0 {
			response.BadRequest(c, "at least one ticker is required")
			return
		}

		summary, err := h.service.Run(c.Request.Context(), req)
		if err != nil && errors.Is(err, ErrAllCompaniesFailed) {
			response.BadGateway(c, err.Error())
			return
		}
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, summary)
	}
}

// GetTradesHandler handles GET requests for a company's normalized trades.
func (h *GinHandlers) GetTradesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ticker := strings.ToUpper(c.Param("ticker"))

		company, err := h.service.db.GetCompanyByTicker(ticker)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if company == nil {
			response.NotFound(c, "unknown ticker")
			return
		}

		trades, err := h.service.db.GetTradesByCompany(company.ID, 200)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, trades)
	}
}

// GetFilingsHandler handles GET requests for a company's processed filings.
func (h *GinHandlers) GetFilingsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		ticker := strings.ToUpper(c.Param("ticker"))

		company, err := h.service.db.GetCompanyByTicker(ticker)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		if company == nil {
			response.NotFound(c, "unknown ticker")
			return
		}

		filings, err := h.service.db.GetProcessedFilings(ticker, 200)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, filings)
	}
}
