package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Kvkthecreator/yarnnnn-sub006/internal/middleware"
	"github.com/Kvkthecreator/yarnnnn-sub006/internal/service"
)

type DeliverableHandler struct {
	deliverables *service.Deliverables
}

func NewDeliverableHandler(svc *service.Deliverables) *DeliverableHandler {
	return &DeliverableHandler{deliverables: svc}
}

// respondError maps the service error taxonomy onto HTTP statuses:
// validation 400, missing 404, state conflicts 409, everything else 500.
func respondError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "This item was already resolved or its state changed; refresh and try again"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// List returns all deliverables for the current tenant
func (h *DeliverableHandler) List(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	statusFilter := c.Query("status")

	deliverables, err := h.deliverables.List(c.Request.Context(), tenant, statusFilter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deliverables": deliverables})
}

// Create validates and creates a new deliverable
func (h *DeliverableHandler) Create(c *gin.Context) {
	tenant := middleware.GetTenant(c)

	var input service.CreateInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	d, err := h.deliverables.Create(c.Request.Context(), tenant, input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, d)
}

// Get returns a deliverable with its version history and feedback summary
func (h *DeliverableHandler) Get(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	detail, err := h.deliverables.Get(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Update patches a deliverable's settings
func (h *DeliverableHandler) Update(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	var patch service.UpdateInput
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	d, err := h.deliverables.Update(c.Request.Context(), tenant, id, patch)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, d)
}

// Run requests an out-of-band generation
func (h *DeliverableHandler) Run(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	v, err := h.deliverables.RunNow(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"version_id": v.ID,
		"status":     v.Status,
	})
}

// Pause stops scheduling for a deliverable
func (h *DeliverableHandler) Pause(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	if err := h.deliverables.Pause(c.Request.Context(), tenant, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deliverable paused"})
}

// Resume reactivates scheduling for a deliverable
func (h *DeliverableHandler) Resume(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	if err := h.deliverables.Resume(c.Request.Context(), tenant, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deliverable resumed"})
}

// Archive permanently retires a deliverable; its history stays readable
func (h *DeliverableHandler) Archive(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	if err := h.deliverables.Archive(c.Request.Context(), tenant, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deliverable archived"})
}

// Feedback returns the derived feedback summary for a deliverable
func (h *DeliverableHandler) Feedback(c *gin.Context) {
	tenant := middleware.GetTenant(c)
	id := c.Param("id")

	summary, err := h.deliverables.FeedbackSummary(c.Request.Context(), tenant, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}
