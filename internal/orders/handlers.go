package orders

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/pkg/response"
)

// GinHandlers contains HTTP handlers for order endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type placeOrderRequest struct {
	ClientID         string   `json:"client_id" binding:"required"`
	Exchange         string   `json:"exchange" binding:"required"`
	SchemeCode       string   `json:"scheme_code" binding:"required"`
	SchemeName       string   `json:"scheme_name"`
	TargetSchemeCode string   `json:"target_scheme_code"`
	Amount           *float64 `json:"amount"`
	Units            *float64 `json:"units"`
	FolioNumber      string   `json:"folio_number"`
}

type placeSystematicRequest struct {
	placeOrderRequest
	PlanType     string `json:"plan_type" binding:"required"`
	Frequency    string `json:"frequency" binding:"required"`
	Installments int    `json:"installments" binding:"required"`
	StartDate    string `json:"start_date" binding:"required"`
	MandateRef   string `json:"mandate_ref"`
}

// PlaceHandler handles POST /orders/{purchase,redemption,switch} with the
// order type fixed by the route.
func (h *GinHandlers) PlaceHandler(orderType types.OrderType) gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")

		var req placeOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		order, err := h.service.Place(c.Request.Context(), advisorID, PlaceParams{
			ClientID:         req.ClientID,
			Exchange:         types.Exchange(req.Exchange),
			OrderType:        orderType,
			SchemeCode:       req.SchemeCode,
			SchemeName:       req.SchemeName,
			TargetSchemeCode: req.TargetSchemeCode,
			Amount:           req.Amount,
			Units:            req.Units,
			FolioNumber:      req.FolioNumber,
		})
		h.respondPlaced(c, order, err)
	}
}

// PlaceSystematicHandler handles POST /orders/systematic. The plan type comes
// from the body since SIP/XSIP/STP/SWP share a shape.
func (h *GinHandlers) PlaceSystematicHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")

		var req placeSystematicRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		planType := types.OrderType(req.PlanType)
		if !planType.Systematic() {
			response.BadRequest(c, "plan_type must be one of SIP, XSIP, STP, SWP")
			return
		}

		order, err := h.service.Place(c.Request.Context(), advisorID, PlaceParams{
			ClientID:         req.ClientID,
			Exchange:         types.Exchange(req.Exchange),
			OrderType:        planType,
			SchemeCode:       req.SchemeCode,
			SchemeName:       req.SchemeName,
			TargetSchemeCode: req.TargetSchemeCode,
			Amount:           req.Amount,
			Units:            req.Units,
			FolioNumber:      req.FolioNumber,
			Frequency:        req.Frequency,
			Installments:     req.Installments,
			StartDate:        req.StartDate,
			MandateRef:       req.MandateRef,
		})
		h.respondPlaced(c, order, err)
	}
}

func (h *GinHandlers) respondPlaced(c *gin.Context, order *types.Order, err error) {
	if err != nil {
		var verr *ValidationError
		switch {
		case errors.As(err, &verr):
			response.BadRequest(c, verr.Reason)
		case errors.Is(err, ErrQueueUnavailable):
			response.ServiceUnavailable(c, "Order accepted but could not be queued for submission; it has been marked FAILED")
		default:
			response.InternalError(c, "Failed to place order")
		}
		return
	}
	response.Success(c, gin.H{
		"order_id": order.OrderID,
		"status":   order.Status,
		"message":  "order accepted for submission",
	})
}

// GetHandler handles GET /orders/:order_id.
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		order, err := h.service.Get(advisorID, c.Param("order_id"))
		if err != nil {
			if errors.Is(err, ErrOrderNotFound) {
				response.NotFound(c, "Order not found")
				return
			}
			response.InternalError(c, "Failed to load order")
			return
		}
		response.Success(c, order)
	}
}

// ListHandler handles GET /orders.
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")

		filter := ListFilter{
			ClientID:  c.Query("client_id"),
			Exchange:  types.Exchange(c.Query("exchange")),
			Status:    types.OrderStatus(c.Query("status")),
			OrderType: types.OrderType(c.Query("order_type")),
		}
		filter.Page = intQuery(c, "page", 1)
		filter.Limit = intQuery(c, "limit", 20)

		orders, total, err := h.service.List(advisorID, filter)
		if err != nil {
			response.InternalError(c, "Failed to list orders")
			return
		}
		response.Success(c, gin.H{
			"orders": orders,
			"total":  total,
			"page":   filter.Page,
			"limit":  filter.Limit,
		})
	}
}

// CancelHandler handles POST /orders/:order_id/cancel.
func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		order, err := h.service.Cancel(c.Request.Context(), advisorID, c.Param("order_id"))
		if err != nil {
			h.respondCancelError(c, err)
			return
		}
		response.Success(c, order)
	}
}

func (h *GinHandlers) respondCancelError(c *gin.Context, err error) {
	var verr *ValidationError
	var perr *partner.Error
	switch {
	case errors.Is(err, ErrOrderNotFound):
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
		response.InternalError(c, "Failed to cancel order")
	}
}

func intQuery(c *gin.Context, name string, fallback int) int {
	if raw := c.Query(name); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
