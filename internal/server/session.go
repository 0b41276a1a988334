package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) listSessions(c *gin.Context) {
	ctx := c.Request.Context()
	limit := queryLimit(c)

	if rawUser := strings.TrimSpace(c.Query("user_id")); rawUser != "" {
		userID, err := snowflakeID(rawUser)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		sessions, err := s.sessions.ListByUser(ctx, s.db, userID, limit)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
		return
	}

	sessions, err := s.sessions.List(ctx, s.db, limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}
