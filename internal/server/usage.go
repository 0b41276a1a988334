package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
)

type startUsageRequest struct {
	PumpID   string          `json:"pump_id" binding:"required"`
	UserID   string          `json:"user_id" binding:"required"`
	QuotaKwh decimal.Decimal `json:"quota_kwh" binding:"required"`
}

func (s *Server) startUsage(c *gin.Context) {
	var req startUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.metering.StartSession(c.Request.Context(), meteringdomain.StartRequest{
		PumpID:   req.PumpID,
		UserID:   req.UserID,
		QuotaKwh: req.QuotaKwh,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"session_id":   result.SessionID,
		"quota_kwh":    result.QuotaKwh,
		"tariff_rate":  result.TariffRate,
		"relay_status": result.RelayStatus,
	})
}

type updateUsageRequest struct {
	SessionID  string          `json:"session_id" binding:"required"`
	CurrentKwh decimal.Decimal `json:"current_kwh"`
}

func (s *Server) updateUsage(c *gin.Context) {
	// The field controller interprets any update failure as "cut power".
	c.Set(relayOnErrorKey, meteringdomain.RelayOff)

	var req updateUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.metering.UpdateSession(c.Request.Context(), req.SessionID, req.CurrentKwh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if result.QuotaExceeded {
		c.JSON(http.StatusOK, gin.H{
			"success":        true,
			"quota_exceeded": true,
			"relay_status":   result.RelayStatus,
			"message":        "Quota exceeded, pump stopped",
			"actual_kwh":     result.ActualKwh,
			"quota_kwh":      result.QuotaKwh,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":          true,
		"quota_exceeded":   false,
		"relay_status":     result.RelayStatus,
		"remaining_kwh":    result.RemainingKwh,
		"usage_percentage": result.UsagePercentage,
		"actual_kwh":       result.ActualKwh,
		"quota_kwh":        result.QuotaKwh,
	})
}

type stopUsageRequest struct {
	SessionID string          `json:"session_id" binding:"required"`
	FinalKwh  decimal.Decimal `json:"final_kwh"`
}

func (s *Server) stopUsage(c *gin.Context) {
	var req stopUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.metering.StopSession(c.Request.Context(), req.SessionID, req.FinalKwh)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"relay_status": result.RelayStatus,
		"total_cost":   result.TotalCost,
		"kwh_used":     result.KwhUsed,
	})
}

func (s *Server) pumpStatus(c *gin.Context) {
	result, err := s.metering.PumpStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"pump_id":         result.PumpID,
		"pump_name":       result.PumpName,
		"is_active":       result.IsActive,
		"relay_status":    result.RelayStatus,
		"relay_pin":       result.RelayPin,
		"in_use":          result.InUse,
		"current_session": result.CurrentSession,
	})
}
