package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
)

// sensorRateLimit buckets ingest per device. The device id header is the
// preferred subject; NATed field gateways share an IP, not a device id.
func (s *Server) sensorRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := strings.TrimSpace(c.GetHeader("X-Device-Id"))
		if subject == "" {
			subject = c.ClientIP()
		}
		if !s.limiter.Allow(c.Request.Context(), "sensor:"+subject) {
			s.metrics.RecordRateLimitDenied(c.Request.Context(), "/v1/sensor/data")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorResponse{
				Success: false,
				Message: "Too many readings, slow down",
			})
			return
		}
		c.Next()
	}
}

type sensorDataRequest struct {
	PumpID      string          `json:"pump_id" binding:"required"`
	SessionID   *string         `json:"session_id"`
	Voltage     float64         `json:"voltage"`
	Current     float64         `json:"current"`
	Power       float64         `json:"power"`
	Energy      decimal.Decimal `json:"energy"`
	Frequency   float64         `json:"frequency"`
	PowerFactor float64         `json:"power_factor"`
	Metadata    map[string]any  `json:"metadata"`
}

func (s *Server) ingestSensorData(c *gin.Context) {
	var req sensorDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	result, err := s.metering.RecordReading(c.Request.Context(), meteringdomain.ReadingRequest{
		PumpID:      req.PumpID,
		SessionID:   req.SessionID,
		Voltage:     req.Voltage,
		Current:     req.Current,
		Power:       req.Power,
		EnergyKwh:   req.Energy,
		Frequency:   req.Frequency,
		PowerFactor: req.PowerFactor,
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	body := gin.H{
		"success":        true,
		"reading_id":     result.ReadingID,
		"quota_exceeded": result.QuotaExceeded,
		"relay_command":  result.RelayCommand,
	}
	if result.QuotaExceeded {
		body["message"] = "Quota exceeded, pump stopped"
	}
	c.JSON(http.StatusOK, body)
}

func (s *Server) listPumpReadings(c *gin.Context) {
	pump, err := s.pumps.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pumpID, err := snowflakeID(pump.ID)
	if err != nil {
		AbortWithError(c, ErrInternal)
		return
	}
	readings, err := s.readings.ListByPump(c.Request.Context(), s.db, pumpID, queryLimit(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"readings": readings,
	})
}
