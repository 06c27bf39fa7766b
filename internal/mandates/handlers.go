package mandates

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
	"github.com/wealthdesk/exchange-gateway/pkg/response"
)

// GinHandlers contains HTTP handlers for mandate endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{service: service}
}

type registerRequest struct {
	ClientID      string  `json:"client_id" binding:"required"`
	Exchange      string  `json:"exchange" binding:"required"`
	MandateType   string  `json:"mandate_type" binding:"required"`
	Amount        float64 `json:"amount" binding:"required"`
	AccountNumber string  `json:"account_number" binding:"required"`
	IFSCCode      string  `json:"ifsc_code" binding:"required"`
	BankName      string  `json:"bank_name"`
	StartDate     string  `json:"start_date"`
	EndDate       string  `json:"end_date"`
}

// RegisterHandler handles POST /mandates.
func (h *GinHandlers) RegisterHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")

		var req registerRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		mandate, err := h.service.Register(c.Request.Context(), advisorID, RegisterParams{
			ClientID:      req.ClientID,
			Exchange:      types.Exchange(req.Exchange),
			MandateType:   types.MandateType(req.MandateType),
			Amount:        req.Amount,
			AccountNumber: req.AccountNumber,
			IFSCCode:      req.IFSCCode,
			BankName:      req.BankName,
			StartDate:     req.StartDate,
			EndDate:       req.EndDate,
		})
		if err != nil {
			var verr *ValidationError
			switch {
			case errors.As(err, &verr):
				response.BadRequest(c, verr.Reason)
			case errors.Is(err, ErrQueueUnavailable):
				response.ServiceUnavailable(c, "Mandate recorded but could not be queued for registration; it has been marked REJECTED")
			default:
				response.InternalError(c, "Failed to register mandate")
			}
			return
		}
		response.Success(c, gin.H{
			"mandate_id": mandate.MandateID,
			"status":     mandate.Status,
			"message":    "mandate accepted for registration",
		})
	}
}

// GetHandler handles GET /mandates/:mandate_id.
func (h *GinHandlers) GetHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		mandate, err := h.service.Get(advisorID, c.Param("mandate_id"))
		if err != nil {
			if errors.Is(err, ErrMandateNotFound) {
				response.NotFound(c, "Mandate not found")
				return
			}
			response.InternalError(c, "Failed to load mandate")
			return
		}
		response.Success(c, mandate)
	}
}

// ListHandler handles GET /mandates.
func (h *GinHandlers) ListHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		page := intQuery(c, "page", 1)
		limit := intQuery(c, "limit", 20)

		mandates, total, err := h.service.List(advisorID, c.Query("client_id"), types.MandateStatus(c.Query("status")), page, limit)
		if err != nil {
			response.InternalError(c, "Failed to list mandates")
			return
		}
		response.Success(c, gin.H{
			"mandates": mandates,
			"total":    total,
			"page":     page,
			"limit":    limit,
		})
	}
}

// RefreshHandler handles POST /mandates/:mandate_id/refresh.
func (h *GinHandlers) RefreshHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		mandate, err := h.service.Refresh(c.Request.Context(), advisorID, c.Param("mandate_id"))
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		response.Success(c, mandate)
	}
}

// CancelHandler handles POST /mandates/:mandate_id/cancel.
func (h *GinHandlers) CancelHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		advisorID := c.GetString("advisor_id")
		mandate, err := h.service.Cancel(c.Request.Context(), advisorID, c.Param("mandate_id"))
		if err != nil {
			h.respondServiceError(c, err)
			return
		}
		response.Success(c, mandate)
	}
}

func (h *GinHandlers) respondServiceError(c *gin.Context, err error) {
	var verr *ValidationError
	var perr *partner.Error
	switch {
	case errors.Is(err, ErrMandateNotFound):
		response.NotFound(c, "Mandate not found")
	case errors.As(err, &verr):
		response.BadRequest(c, verr.Reason)
	case errors.As(err, &perr):
		if perr.Kind == partner.KindSystemUnavailable {
			response.ServiceUnavailable(c, perr.Message)
			return
		}
		response.BadRequest(c, perr.Message)
	case errors.Is(err, partner.ErrCircuitOpen), partner.IsTransient(err):
		response.ServiceUnavailable(c, "Partner exchange temporarily unavailable")
	default:
		response.InternalError(c, "Mandate operation failed")
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
