package rest

import (
	"net/http"

	"github.com/KevinKickass/OpenStudioCore/internal/types"
	"github.com/gin-gonic/gin"
)

// GET /api/v1/system/status
func (s *Server) getSystemStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, types.NewErrorResponse(types.CodeUnavailable, "System status not available", nil))
		return
	}
	c.JSON(http.StatusOK, s.status.GetCurrentStatus())
}
