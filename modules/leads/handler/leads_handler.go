package handler

import (
	"net/http"
	"strconv"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/leads/service"
	"github.com/gin-gonic/gin"
)

// defaultTransformerBatch bounds a single kick of the Transformer when the
// caller doesn't specify a limit.
const defaultTransformerBatch = 25

// LeadsHandler exposes the Transformer's administrative kick endpoint.
type LeadsHandler struct {
	transformer *service.TransformerService
}

func NewLeadsHandler(transformer *service.TransformerService) *LeadsHandler {
	return &LeadsHandler{transformer: transformer}
}

// RunTransformer godoc
// @Summary Run one Transformer batch
// @Description Claims up to limit parsed batches and transforms their valid unmatched rows into canonical leads
// @Tags leads
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Maximum batches to claim"
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /leads/run-transformer [post]
func (h *LeadsHandler) RunTransformer(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	limit := defaultTransformerBatch
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	processed, err := h.transformer.RunPending(c.Request.Context(), limit)
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "TRANSFORMER_RUN_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"processed": processed})
}

// RegisterRoutes registers leads routes.
func (h *LeadsHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	leads := router.Group("/leads")
	leads.Use(authMiddleware)
	{
		leads.POST("/run-transformer", h.RunTransformer)
	}
}
