package handler

import (
	"encoding/base64"
	"net/http"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/ingestion/service"
	"github.com/gin-gonic/gin"
)

// IngestionHandler exposes the incoming stage-csv endpoint. Parsing runs
// inline right after staging, since it's a bounded in-memory CSV split, not
// a worker poll loop.
type IngestionHandler struct {
	stager *service.StagerService
	parser *service.ParserService
}

func NewIngestionHandler(stager *service.StagerService, parser *service.ParserService) *IngestionHandler {
	return &IngestionHandler{stager: stager, parser: parser}
}

// StageCSVRequest is the stage-csv request body.
type StageCSVRequest struct {
	TenantID    string `json:"tenant_id" binding:"required"`
	SourceSlug  string `json:"source_slug" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	BytesBase64 string `json:"bytes_base64" binding:"required"`
	Origin      string `json:"origin"`
}

// StageCSV godoc
// @Summary Stage a CSV ingestion
// @Description Accepts raw CSV bytes for a configured lead source, deduplicating on file hash
// @Tags ingestion
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body StageCSVRequest true "Staging request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /ingestion/stage-csv [post]
func (h *IngestionHandler) StageCSV(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	var req StageCSVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	fileBytes, err := base64.StdEncoding.DecodeString(req.BytesBase64)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "bytes_base64 is not valid base64")
		return
	}

	result, err := h.stager.Stage(c.Request.Context(), req.TenantID, req.SourceSlug, req.Filename, fileBytes, service.OriginMetadata{
		Channel: "api_upload",
		Detail:  req.Origin,
	})
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "STAGE_FAILED", err.Error())
		return
	}

	if !result.Deduplicated {
		if err := h.parser.Parse(c.Request.Context(), result.Batch, fileBytes); err != nil {
			httpPlatform.RespondWithData(c, http.StatusOK, gin.H{
				"batch_id":     result.Batch.ID,
				"deduplicated": result.Deduplicated,
				"parse_error":  err.Error(),
			})
			return
		}
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{
		"batch_id":     result.Batch.ID,
		"deduplicated": result.Deduplicated,
	})
}

// RegisterRoutes registers ingestion routes.
func (h *IngestionHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	ingestion := router.Group("/ingestion")
	ingestion.Use(authMiddleware)
	{
		ingestion.POST("/stage-csv", h.StageCSV)
	}
}
