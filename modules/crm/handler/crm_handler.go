package handler

import (
	"net/http"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/crm/service"
	"github.com/gin-gonic/gin"
)

// CrmHandler exposes the CRM Puller's kick endpoint.
type CrmHandler struct {
	puller *service.PullerService
}

func NewCrmHandler(puller *service.PullerService) *CrmHandler {
	return &CrmHandler{puller: puller}
}

// RunSyncRequest is the run-crm-sync request body.
type RunSyncRequest struct {
	TenantID     string `json:"tenant_id" binding:"required"`
	ConnectionID string `json:"connection_id" binding:"required"`
	Force        bool   `json:"force"`
}

// RunSync godoc
// @Summary Run a CRM sync
// @Description Pulls all people from the connection's CRM, incrementally unless force is set
// @Tags crm
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RunSyncRequest true "Sync request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /crm/run-crm-sync [post]
func (h *CrmHandler) RunSync(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	var req RunSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	result, err := h.puller.Sync(c.Request.Context(), req.TenantID, req.ConnectionID, req.Force)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "CRM_SYNC_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{
		"sync_log_id": result.SyncLogID,
		"fetched":     result.Fetched,
		"created":     result.Created,
		"updated":     result.Updated,
		"errors":      result.Errors,
	})
}

// RegisterRoutes registers crm routes.
func (h *CrmHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	crm := router.Group("/crm")
	crm.Use(authMiddleware)
	{
		crm.POST("/run-crm-sync", h.RunSync)
	}
}
