package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
)

func (s *Server) listPumps(c *gin.Context) {
	pumps, err := s.pumps.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pumps": pumps})
}

func (s *Server) createPump(c *gin.Context) {
	var req pumpdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	pump, err := s.pumps.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "pump": pump})
}

func (s *Server) getPump(c *gin.Context) {
	pump, err := s.pumps.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pump": pump})
}

func (s *Server) updatePump(c *gin.Context) {
	var req pumpdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")
	pump, err := s.pumps.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "pump": pump})
}
