package handler

import (
	"errors"
	"net/http"

	"github.com/haloestate/leadpipe/internal/platform/auth"
	httpPlatform "github.com/haloestate/leadpipe/internal/platform/http"
	"github.com/haloestate/leadpipe/modules/matching/model"
	"github.com/haloestate/leadpipe/modules/matching/service"
	"github.com/gin-gonic/gin"
)

// MatchingHandler exposes the Matcher's kick endpoint and the Review
// Resolver's approve/reject endpoints.
type MatchingHandler struct {
	matcher  *service.MatcherService
	resolver *service.ReviewResolverService
}

func NewMatchingHandler(matcher *service.MatcherService, resolver *service.ReviewResolverService) *MatchingHandler {
	return &MatchingHandler{matcher: matcher, resolver: resolver}
}

// RunMatcher godoc
// @Summary Run one Matcher batch
// @Description Claims and scores up to a batch of pending/review canonical leads
// @Tags matching
// @Security BearerAuth
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /matching/run-matcher [post]
func (h *MatchingHandler) RunMatcher(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	result, err := h.matcher.Run(c.Request.Context())
	if err != nil {
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "MATCHER_RUN_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{
		"claimed":   result.Claimed,
		"auto":      result.Auto,
		"review":    result.Review,
		"multiple":  result.Multiple,
		"unmatched": result.Unmatched,
		"skipped":   result.Skipped,
		"failed":    result.Failed,
	})
}

// ApproveCandidateRequest is the approve-candidate request body.
type ApproveCandidateRequest struct {
	TenantID    string `json:"tenant_id" binding:"required"`
	CandidateID string `json:"candidate_id" binding:"required"`
	ReviewerID  string `json:"reviewer_id" binding:"required"`
}

// ApproveCandidate godoc
// @Summary Approve a pending match candidate
// @Description Commits the candidate as a manual match and rejects its sibling candidates
// @Tags matching
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body ApproveCandidateRequest true "Approval request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 409 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /matching/approve-candidate [post]
func (h *MatchingHandler) ApproveCandidate(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	var req ApproveCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	match, err := h.resolver.Approve(c.Request.Context(), req.TenantID, req.CandidateID, req.ReviewerID)
	if err != nil {
		if errors.Is(err, model.ErrCandidateNotPending) {
			httpPlatform.RespondWithError(c, http.StatusConflict, "CANDIDATE_NOT_PENDING", err.Error())
			return
		}
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "APPROVE_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"match_id": match.ID})
}

// RejectCandidateRequest is the reject-candidate request body.
type RejectCandidateRequest struct {
	TenantID    string `json:"tenant_id" binding:"required"`
	CandidateID string `json:"candidate_id" binding:"required"`
	ReviewerID  string `json:"reviewer_id" binding:"required"`
}

// RejectCandidate godoc
// @Summary Reject a pending match candidate
// @Description Rejects the candidate; reverts the canonical lead to unmatched if no pending candidates remain
// @Tags matching
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body RejectCandidateRequest true "Rejection request"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} httpPlatform.ErrorResponse
// @Failure 401 {object} httpPlatform.ErrorResponse
// @Failure 409 {object} httpPlatform.ErrorResponse
// @Failure 500 {object} httpPlatform.ErrorResponse
// @Router /matching/reject-candidate [post]
func (h *MatchingHandler) RejectCandidate(c *gin.Context) {
	if _, ok := auth.MustGetServiceSubject(c); !ok {
		return
	}

	var req RejectCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpPlatform.RespondWithError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request payload")
		return
	}

	if err := h.resolver.Reject(c.Request.Context(), req.TenantID, req.CandidateID, req.ReviewerID); err != nil {
		if errors.Is(err, model.ErrCandidateNotPending) {
			httpPlatform.RespondWithError(c, http.StatusConflict, "CANDIDATE_NOT_PENDING", err.Error())
			return
		}
		httpPlatform.RespondWithError(c, http.StatusInternalServerError, "REJECT_FAILED", err.Error())
		return
	}

	httpPlatform.RespondWithData(c, http.StatusOK, gin.H{"status": "rejected"})
}

// RegisterRoutes registers matching routes.
func (h *MatchingHandler) RegisterRoutes(router *gin.RouterGroup, authMiddleware gin.HandlerFunc) {
	matching := router.Group("/matching")
	matching.Use(authMiddleware)
	{
		matching.POST("/run-matcher", h.RunMatcher)
		matching.POST("/approve-candidate", h.ApproveCandidate)
		matching.POST("/reject-candidate", h.RejectCandidate)
	}
}
