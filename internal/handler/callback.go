package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/service"
)

type CallbackHandler struct {
	deliverables *service.Deliverables
}

func NewCallbackHandler(svc *service.Deliverables) *CallbackHandler {
	return &CallbackHandler{deliverables: svc}
}

// CallbackRequest is what the external generator posts when a run finishes.
// VersionID is the correlation id handed out when the run was requested.
type CallbackRequest struct {
	VersionID string `json:"version_id" binding:"required"`
	State     string `json:"state" binding:"required"` // done, failed
	Content   string `json:"content,omitempty"`
	ErrorMsg  string `json:"error_msg,omitempty"`
}

// HandleCallback receives the generation result and moves the version to
// staged (draft ready for review) or failed
func (h *CallbackHandler) HandleCallback(c *gin.Context) {
	var req CallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var err error
	switch req.State {
	case "done":
		err = h.deliverables.CompleteGeneration(c.Request.Context(), req.VersionID, req.Content, "")
	case "failed":
		errMsg := req.ErrorMsg
		if errMsg == "" {
			errMsg = "generation failed"
		}
		err = h.deliverables.CompleteGeneration(c.Request.Context(), req.VersionID, "", errMsg)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown state"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Callback received"})
}
