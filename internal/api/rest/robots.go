package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenStudioCore/internal/coordinator"
	"github.com/KevinKickass/OpenStudioCore/internal/studio"
	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GET /api/v1/robots
func (s *Server) listRobots(c *gin.Context) {
	robots := s.studio.Robots()
	states := make([]coordinator.State, 0, len(robots))
	for _, r := range robots {
		states = append(states, r.Snapshot())
	}
	c.JSON(http.StatusOK, gin.H{
		"robots": states,
		"count":  len(states),
	})
}

// GET /api/v1/robots/:name
func (s *Server) getRobot(c *gin.Context) {
	r, ok := s.lookupRobot(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r.Snapshot())
}

// POST /api/v1/robots/:name/move
func (s *Server) moveRobot(c *gin.Context) {
	s.executeRobotCommand(c, coordinator.CommandMove)
}

// POST /api/v1/robots/:name/stop
func (s *Server) stopRobot(c *gin.Context) {
	s.executeRobotCommand(c, coordinator.CommandStop)
}

func (s *Server) executeRobotCommand(c *gin.Context, cmd coordinator.Command) {
	r, ok := s.lookupRobot(c)
	if !ok {
		return
	}

	if _, err := r.ExecuteCommand(cmd); err != nil {
		switch {
		case errors.Is(err, coordinator.ErrCommandUnavailable):
			c.JSON(http.StatusConflict, types.NewErrorResponse(types.CodeConflict, "Command not available", string(cmd)))
		case errors.Is(err, coordinator.ErrClosed):
			c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse(types.CodeUnavailable, "Robot unavailable", r.Name()))
		default:
			s.logger.Error("Robot command failed",
				zap.String("robot", r.Name()),
				zap.String("command", string(cmd)),
				zap.Error(err))
			c.JSON(http.StatusBadRequest, types.NewErrorResponse(types.CodeBadRequest, "Command execution failed", err.Error()))
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"message": "Command accepted",
		"command": cmd,
		"robot":   r.Name(),
	})
}

func (s *Server) lookupRobot(c *gin.Context) (*coordinator.Coordinator, bool) {
	name := c.Param("name")
	r, ok := s.studio.Robot(name)
	if !ok {
		c.JSON(http.StatusNotFound, types.NewErrorResponse(types.CodeNotFound, studio.ErrUnknownRobot.Error(), name))
		return nil, false
	}
	return r, true
}
