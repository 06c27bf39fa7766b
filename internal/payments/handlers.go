package payments

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/wealthdesk/exchange-gateway/internal/orders"
	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/pkg/response"
)

// GinHandlers contains HTTP handlers for payment endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type initiatePaymentRequest struct {
	PaymentMode  string `json:"payment_mode" binding:"required"`
	BankCode     string `json:"bank_code"`
	VPA          string `json:"vpa"`
	UTRNumber    string `json:"utr_number"`
	ChequeNumber string `json:"cheque_number"`
	ChequeDate   string `json:"cheque_date"`
	MandateRef   string `json:"mandate_ref"`
}

// InitiateHandler handles POST /orders/:order_id/payment.
func (h *GinHandlers) InitiateHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")

		var req initiatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		payment, err := h.service.Initiate(c.Request.Context(), advisorID, c.Param("order_id"), InitiateParams{
			Mode:         types.PaymentMode(req.PaymentMode),
			BankCode:     req.BankCode,
			VPA:          req.VPA,
			UTRNumber:    req.UTRNumber,
			ChequeNumber: req.ChequeNumber,
			ChequeDate:   req.ChequeDate,
			MandateRef:   req.MandateRef,
		})
		if err != nil {
			h.respondInitiateError(c, err)
			return
		}
		response.Success(c, payment)
	}
}

func (h *GinHandlers) respondInitiateError(c *gin.Context, err error) {
	var verr *ValidationError
	var perr *partner.Error
	switch {
	case errors.Is(err, orders.ErrOrderNotFound):
		response.NotFound(c, "Order not found")
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Reason)
	case errors.As(err, &perr):
		if perr.Kind == partner.KindSystemUnavailable {
			response.ServiceUnavailable(c, perr.Message)
			return
		}
		response.BadRequest(c, perr.Message)
	case errors.Is(err, partner.ErrCircuitOpen):
		response.ServiceUnavailable(c, "Partner exchange temporarily unavailable")
	case partner.IsTransient(err):
		response.ServiceUnavailable(c, "Partner exchange temporarily unavailable")
	default:
		response.InternalError(c, "Failed to initiate payment")
	}
}

// StatusHandler handles GET /orders/:order_id/payment.
func (h *GinHandlers) StatusHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		payment, err := h.service.Status(advisorID, c.Param("order_id"))
		if err != nil {
			switch {
			case errors.Is(err, orders.ErrOrderNotFound):
				response.NotFound(c, "Order not found")
			case errors.Is(err, ErrPaymentNotFound):
				response.NotFound(c, "No payment has been initiated for this order")
			default:
				response.InternalError(c, "Failed to load payment")
			}
			return
		}
		response.Success(c, payment)
	}
}
