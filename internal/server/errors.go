package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
	meteringdomain "github.com/smallbiznis/irriflow/internal/metering/domain"
	pumpdomain "github.com/smallbiznis/irriflow/internal/pump/domain"
	sessiondomain "github.com/smallbiznis/irriflow/internal/session/domain"
	tariffdomain "github.com/smallbiznis/irriflow/internal/tariff/domain"
)

var (
	ErrInvalidRequest = errors.New("invalid_request")
	ErrInternal       = errors.New("internal_error")
)

// errorResponse is the failure envelope for every endpoint. Field devices
// parse only `success` and `message`; relay fields are added per route where
// the device expects a directive even on failure.
type errorResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RelayStatus string `json:"relay_status,omitempty"`
}

// ErrorHandlingMiddleware converts errors collected on the context into the
// failure envelope. Handlers that already wrote a response are left alone.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, message := mapError(lastErr.Err)
		body := errorResponse{Success: false, Message: message}
		if relay, ok := c.Get(relayOnErrorKey); ok {
			body.RelayStatus, _ = relay.(string)
		}
		c.AbortWithStatusJSON(status, body)
	}
}

// relayOnErrorKey marks routes whose failure envelope must still carry a
// relay directive.
const relayOnErrorKey = "relay_on_error"

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, "Internal server error"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, meteringdomain.ErrInvalidID),
		errors.Is(err, meteringdomain.ErrInvalidReading),
		errors.Is(err, tariffdomain.ErrInvalidID),
		errors.Is(err, tariffdomain.ErrInvalidName),
		errors.Is(err, tariffdomain.ErrInvalidRate),
		errors.Is(err, tariffdomain.ErrInvalidWindow),
		errors.Is(err, pumpdomain.ErrInvalidID),
		errors.Is(err, pumpdomain.ErrInvalidName),
		errors.Is(err, pumpdomain.ErrInvalidRelayPin),
		errors.Is(err, billingdomain.ErrInvalidID):
		return http.StatusBadRequest, "Invalid request"
	case errors.Is(err, meteringdomain.ErrQuotaOutOfRange):
		return http.StatusBadRequest, "Quota must be between 0.1 and 100 kWh"
	case errors.Is(err, sessiondomain.ErrPumpBusy):
		return http.StatusBadRequest, "Pump is already in use"
	case errors.Is(err, meteringdomain.ErrPumpInactive):
		return http.StatusBadRequest, "Pump is not active"
	case errors.Is(err, sessiondomain.ErrSessionNotActive):
		return http.StatusBadRequest, "Invalid or inactive session"
	case errors.Is(err, billingdomain.ErrAlreadyPaid):
		return http.StatusBadRequest, "Billing already paid"
	case errors.Is(err, meteringdomain.ErrPumpNotFound),
		errors.Is(err, pumpdomain.ErrNotFound):
		return http.StatusNotFound, "Pump not found"
	case errors.Is(err, sessiondomain.ErrNotFound):
		return http.StatusNotFound, "Session not found"
	case errors.Is(err, tariffdomain.ErrNotFound):
		return http.StatusNotFound, "Tariff not found"
	case errors.Is(err, billingdomain.ErrNotFound):
		return http.StatusNotFound, "Billing not found"
	case errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, "Not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// classifyErrorForLog buckets errors for the request logger.
func classifyErrorForLog(err error) (string, string) {
	status, _ := mapError(err)
	switch {
	case status == http.StatusNotFound:
		return "not_found", err.Error()
	case status == http.StatusBadRequest:
		return "validation_error", err.Error()
	default:
		return "internal_error", err.Error()
	}
}
