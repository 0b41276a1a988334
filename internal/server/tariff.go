package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

func (s *Server) listTariffs(c *gin.Context) {
	tariffs, err := s.tariffs.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tariffs": tariffs})
}

func (s *Server) createTariff(c *gin.Context) {
	var req tariffdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	tariff, err := s.tariffs.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "tariff": tariff})
}

func (s *Server) getTariff(c *gin.Context) {
	tariff, err := s.tariffs.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tariff": tariff})
}

func (s *Server) updateTariff(c *gin.Context) {
	var req tariffdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.ID = c.Param("id")
	tariff, err := s.tariffs.Update(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tariff": tariff})
}

func (s *Server) deactivateTariff(c *gin.Context) {
	tariff, err := s.tariffs.Deactivate(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "tariff": tariff})
}
