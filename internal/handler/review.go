package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/middleware"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/service"
)

type ReviewHandler struct {
	deliverables *service.Deliverables
}

func NewReviewHandler(svc *service.Deliverables) *ReviewHandler {
	return &ReviewHandler{deliverables: svc}
}

// Attention returns the tenant's attention queue: every version awaiting a
// decision, oldest staged first
func (h *ReviewHandler) Attention(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	items, err := h.deliverables.Attention(c.Request.Context(), tenant)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// Claim takes the advisory review lock on a version
func (h *ReviewHandler) Claim(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	reviewer := middleware.GetUsername(c)

	v, err := h.deliverables.Claim(c.Request.Context(), tenant, c.Param("id"), c.Param("vid"), reviewer)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

type ApproveRequest struct {
	FinalContent *string `json:"final_content,omitempty"`
}

// Approve commits an approval, optionally with edited final content
func (h *ReviewHandler) Approve(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	v, err := h.deliverables.Approve(c.Request.Context(), tenant, c.Param("id"), c.Param("vid"), req.FinalContent)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}

type RejectRequest struct {
	FeedbackNotes string `json:"feedback_notes"`
}

// Reject commits a rejection; feedback notes are mandatory
func (h *ReviewHandler) Reject(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	v, err := h.deliverables.Reject(c.Request.Context(), tenant, c.Param("id"), c.Param("vid"), req.FeedbackNotes)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, v)
}
