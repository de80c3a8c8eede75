package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenStudioCore/internal/studio"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/studio
func (s *Server) getStudio(c *gin.Context) {
	c.JSON(http.StatusOK, s.studio.Snapshot())
}

// GET /api/v1/targets
func (s *Server) listTargets(c *gin.Context) {
	targets := s.studio.Targets()
	views := make([]studio.TargetView, 0, len(targets))
	for _, target := range targets {
		views = append(views, studio.NewTargetView(target))
	}
	c.JSON(http.StatusOK, gin.H{
		"targets": views,
		"count":   len(views),
	})
}

// PUT /api/v1/studio/selected-target
func (s *Server) selectTarget(c *gin.Context) {
	var req struct {
		Target *string `json:"target" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "Invalid request body", err.Error()))
		return
	}

	if err := s.studio.SelectTarget(*req.Target); err != nil {
		if errors.Is(err, studio.ErrUnknownTarget) {
			c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeNotFound, "Target not found", *req.Target))
			return
		}
		s.logger.Error("Target selection failed", zap.String("target", *req.Target), zap.Error(err))
		c.JSON(http.StatusInternalServerError, types.NewErrorResponse(types.CodeInternal, "Target selection failed", err.Error()))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"selected_target": s.studio.SelectedTarget().Name(),
		"can_move_all":    s.studio.CanMoveAll(),
	})
}

// POST /api/v1/studio/move-all
func (s *Server) moveAll(c *gin.Context) {
	if !s.studio.CanMoveAll() {
		c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "Move all not available", nil))
		return
	}

	_, robots := s.studio.MoveAll()
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Move accepted",
		"robots":  robots,
	})
}

// POST /api/v1/studio/stop-all
func (s *Server) stopAll(c *gin.Context) {
	if !s.studio.CanStopAll() {
		c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "Stop all not available", nil))
		return
	}

	_, robots := s.studio.StopAll()
	c.JSON(http.StatusAccepted, gin.H{
		"message": "Stop accepted",
		"robots":  robots,
	})
}

// GET /api/v1/messages
func (s *Server) listMessages(c *gin.Context) {
	messages := s.studio.Messages()
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}
