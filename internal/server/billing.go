package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	billingdomain "github.com/smallbiznis/irriflow/internal/billing/domain"
)

func (s *Server) listBillings(c *gin.Context) {
	billings, err := s.billing.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "billings": billings})
}

func (s *Server) getBilling(c *gin.Context) {
	billing, err := s.billing.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "billing": billing})
}

type payBillingRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required"`
}

func (s *Server) payBilling(c *gin.Context) {
	var req payBillingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	billing, err := s.billing.MarkPaid(c.Request.Context(), billingdomain.MarkPaidRequest{
		ID:            c.Param("id"),
		PaymentMethod: req.PaymentMethod,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "billing": billing})
}
