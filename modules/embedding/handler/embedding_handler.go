package handler

import (
	"net/http"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/embedding/service"
	"github.com/gin-gonic/gin"
)

// EmbeddingHandler exposes the Embedding Worker's administrative kick
// endpoint and queue stats.
type EmbeddingHandler struct {
	embedding *service.EmbeddingService
}

func NewEmbeddingHandler(embedding *service.EmbeddingService) *EmbeddingHandler {
	return &EmbeddingHandler{embedding: embedding}
}

// RunEmbeddings godoc
// @Summary Run one Embedding Worker batch
// @Description Claims up to batch_size pending embedding tasks and sends them to the provider in one request
// @Tags embedding
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /embedding/run-embeddings [post]
func (h *EmbeddingHandler) RunEmbeddings(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	processed, err := h.embedding.Run(c.Request.Context())
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "EMBEDDING_RUN_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"processed": processed})
}

// Stats godoc
// @Summary Embedding queue stats
// @Description Reports pending and failed embedding task counts
// @Tags embedding
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /embedding/stats [get]
func (h *EmbeddingHandler) Stats(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	stats, err := h.embedding.Stats(c.Request.Context())
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "STATS_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, stats)
}

// RegisterRoutes registers embedding routes.
func (h *EmbeddingHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	embedding := router.Group("/embedding")
	embedding.Use(authMiddleware)
	{
		embedding.POST("/run-embeddings", h.RunEmbeddings)
		embedding.GET("/stats", h.Stats)
	}
}
