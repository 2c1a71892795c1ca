package handler

import (
	"net/http"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/reporting/ports"
	"github.com/gin-gonic/gin"
)

// ReportingHandler exposes read-only endpoints over the reporting views.
type ReportingHandler struct {
	reports ports.ReportRepository
}

func NewReportingHandler(reports ports.ReportRepository) *ReportingHandler {
	return &ReportingHandler{reports: reports}
}

// Sources godoc
// @Summary Per lead-source volume and match-status breakdown
// @Tags reporting
// @Security BearerAuth
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /reports/sources [get]
func (h *ReportingHandler) Sources(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	rows, err := h.reports.SourceSummary(c.Request.Context(), tenantID)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REPORT_QUERY_FAILED", err.Error())
		return
	}
	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"sources": rows})
}

// Teams godoc
// @Summary Active matches attributed per team
// @Tags reporting
// @Security BearerAuth
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /reports/teams [get]
func (h *ReportingHandler) Teams(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	rows, err := h.reports.TeamSummary(c.Request.Context(), tenantID)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REPORT_QUERY_FAILED", err.Error())
		return
	}
	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"teams": rows})
}

// Agents godoc
// @Summary Active matches attributed per agent
// @Tags reporting
// @Security BearerAuth
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /reports/agents [get]
func (h *ReportingHandler) Agents(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	rows, err := h.reports.AgentSummary(c.Request.Context(), tenantID)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REPORT_QUERY_FAILED", err.Error())
		return
	}
	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"agents": rows})
}

// Ingestion godoc
// @Summary Per batch ingestion counts
// @Tags reporting
// @Security BearerAuth
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /reports/ingestion [get]
func (h *ReportingHandler) Ingestion(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	rows, err := h.reports.IngestionSummary(c.Request.Context(), tenantID)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REPORT_QUERY_FAILED", err.Error())
		return
	}
	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"batches": rows})
}

// ReviewQueue godoc
// @Summary Pending match candidates awaiting manual review
// @Tags reporting
// @Security BearerAuth
// @Produce json
// @Param tenant_id query string true "Tenant ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /reports/review-queue [get]
func (h *ReportingHandler) ReviewQueue(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}
	tenantID, ok := requireTenantID(c)
	if !ok {
		return
	}

	rows, err := h.reports.ReviewQueue(c.Request.Context(), tenantID)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REPORT_QUERY_FAILED", err.Error())
		return
	}
	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"candidates": rows})
}

func requireTenantID(c *gin.Context) (string, bool) {
	tenantID := c.Query("tenant_id")
	if tenantID == "" {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "tenant_id query parameter is required")
		return "", false
	}
	return tenantID, true
}

// RegisterRoutes registers reporting routes.
func (h *ReportingHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	reports := router.Group("/reports")
	reports.Use(authMiddleware)
	{
		reports.GET("/sources", h.Sources)
		reports.GET("/teams", h.Teams)
		reports.GET("/agents", h.Agents)
		reports.GET("/ingestion", h.Ingestion)
		reports.GET("/review-queue", h.ReviewQueue)
	}
}
