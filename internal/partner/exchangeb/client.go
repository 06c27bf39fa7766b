// Package exchangeb implements the partner.Client for the JSON exchange.
// Every call is stateless: a signed Authorization header is rebuilt per
// request instead of maintaining a session.
package exchangeb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

// Status reports can scan large books on the partner side, so they get a
// longer deadline than transactional calls. Payment initiations wait on the
// partner's bank round trip and get their own deadline.
const (
	reportTimeout  = 60 * time.Second
	paymentTimeout = 45 * time.Second
)

const (
	orderEndpoint         = "/mfs/api/v2/transaction/NORMAL"
	switchEndpoint        = "/mfs/api/v2/transaction/SWITCH"
	planEndpoint          = "/mfs/api/v2/registration/SYSTEMATIC"
	paymentEndpoint       = "/mfs/api/v2/transaction/PAYMENT"
	cancelOrderEndpoint   = "/mfs/api/v2/cancellation/ORDER"
	cancelPlanEndpoint    = "/mfs/api/v2/cancellation/SYSTEMATIC"
	orderReportEndpoint   = "/mfs/api/v2/reports/ORDER_STATUS"
	mandateEndpoint       = "/mfs/api/v2/registration/MANDATE"
	mandateReportEndpoint = "/mfs/api/v2/reports/MANDATE_STATUS"
	healthEndpoint        = "/mfs/api/v2/utility/HEALTH"
)

type Client struct {
	transport *partner.Transport
}

func NewClient(transport *partner.Transport) *Client {
	return &Client{transport: transport}
}

func (c *Client) Exchange() types.Exchange {
	return types.ExchangeB
}

func (c *Client) SubmitOrder(ctx context.Context, creds partner.Credentials, req partner.OrderRequest) (*partner.OrderAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	endpoint := orderEndpoint
	body := map[string]any{
		"client_code": req.ClientCode,
		"scheme_code": req.SchemeCode,
	}
	switch req.Operation {
	case types.OrderPurchase:
		body["trxn_type"] = "P"
		body["order_amount"] = formatAmount(req.Amount)
	case types.OrderRedemption:
		body["trxn_type"] = "R"
		if req.Amount != nil {
			body["order_amount"] = formatAmount(req.Amount)
		}
		if req.Units != nil {
			body["order_units"] = formatAmount(req.Units)
		}
	case types.OrderSwitch:
		endpoint = switchEndpoint
		body["from_scheme_code"] = req.SchemeCode
		body["to_scheme_code"] = req.TargetSchemeCode
		delete(body, "scheme_code")
		if req.Amount != nil {
			body["order_amount"] = formatAmount(req.Amount)
		}
		if req.Units != nil {
			body["order_units"] = formatAmount(req.Units)
		}
	default:
		endpoint = planEndpoint
		body["plan_type"] = string(req.Operation)
		body["installment_amount"] = formatAmount(req.Amount)
		body["frequency"] = req.Frequency
		body["installments"] = strconv.Itoa(req.Installments)
		body["start_date"] = req.StartDate
		if req.MandateRef != "" {
			body["mandate_id"] = req.MandateRef
		}
		if req.Operation == types.OrderSTP {
			body["to_scheme_code"] = req.TargetSchemeCode
		}
	}
	if req.FolioNumber != "" {
		body["folio_no"] = req.FolioNumber
	}

	resp, err := c.post(ctx, creds, endpoint, "ORDER_ENTRY", body)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.OrderAck{
		ExternalOrderID: firstString(result.Data, "order_id", "trxn_id", "reg_id"),
		Result:          result,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, creds partner.Credentials, operation types.OrderType, externalOrderID string) (*partner.Result, error) {
	endpoint := cancelOrderEndpoint
	if operation.Systematic() {
		endpoint = cancelPlanEndpoint
	}
	body := map[string]any{"order_id": externalOrderID}

	resp, err := c.post(ctx, creds, endpoint, "ORDER_CANCEL", body)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &result, nil
}

func (c *Client) InitiatePayment(ctx context.Context, creds partner.Credentials, req partner.PaymentRequest) (*partner.PaymentAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"client_code":  req.ClientCode,
		"order_id":     req.ExternalOrderID,
		"payment_mode": string(req.Mode),
	}
	if req.Amount != nil {
		body["payment_amount"] = formatAmount(req.Amount)
	}
	switch req.Mode {
	case types.PaymentUPI:
		body["vpa"] = req.VPA
	case types.PaymentNetbanking:
		body["bank_code"] = req.BankCode
	case types.PaymentMandate:
		body["mandate_id"] = req.MandateRef
	case types.PaymentRTGS, types.PaymentNEFT:
		body["utr_no"] = req.UTRNumber
	case types.PaymentCheque:
		body["cheque_no"] = req.ChequeNumber
		body["cheque_date"] = req.ChequeDate
	}

	resp, err := c.postWithTimeout(ctx, creds, paymentEndpoint, "ORDER_PAYMENT", body, paymentTimeout)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.PaymentAck{
		TransactionRef: firstString(result.Data, "transaction_ref", "payment_ref"),
		Result:         result,
	}, nil
}

func (c *Client) OrderStatuses(ctx context.Context, creds partner.Credentials, externalOrderIDs []string) ([]partner.OrderStatusRecord, error) {
	body := map[string]any{"order_ids": strings.Join(externalOrderIDs, ",")}
	resp, err := c.postWithTimeout(ctx, creds, orderReportEndpoint, "ORDER_STATUS_REPORT", body, reportTimeout)
	if err != nil {
		return nil, err
	}

	result := parseResult(resp.Body)
	if err := partner.ErrorFromResult(result); err != nil {
		return nil, err
	}

	rows, _ := result.Data["orders"].([]any)
	records := make([]partner.OrderStatusRecord, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, partner.OrderStatusRecord{
			ExternalOrderID: firstString(row, "order_id"),
			Status:          firstString(row, "order_status", "status"),
			AllottedUnits:   parseFloat(row, "allotted_units"),
			AllottedNAV:     parseFloat(row, "allotted_nav", "nav"),
			AllottedAmount:  parseFloat(row, "allotted_amount", "amount"),
		})
	}
	return records, nil
}

func (c *Client) RegisterMandate(ctx context.Context, creds partner.Credentials, req partner.MandateRequest) (*partner.MandateAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	body := map[string]any{
		"client_code":  req.ClientCode,
		"mandate_type": string(req.Type),
		"amount":       strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"account_no":   req.AccountNumber,
		"ifsc_code":    req.IFSCCode,
		"bank_name":    req.BankName,
		"start_date":   req.StartDate,
		"end_date":     req.EndDate,
	}

	resp, err := c.post(ctx, creds, mandateEndpoint, "MANDATE_REGISTRATION", body)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.MandateAck{
		ExternalMandateID: firstString(result.Data, "mandate_id"),
		AuthURL:           firstString(result.Data, "auth_url", "authentication_url"),
		Result:            result,
	}, nil
}

func (c *Client) MandateStatuses(ctx context.Context, creds partner.Credentials, externalMandateIDs []string) ([]partner.MandateStatusRecord, error) {
	body := map[string]any{"mandate_ids": strings.Join(externalMandateIDs, ",")}
	resp, err := c.postWithTimeout(ctx, creds, mandateReportEndpoint, "MANDATE_STATUS_REPORT", body, reportTimeout)
	if err != nil {
		return nil, err
	}

	result := parseResult(resp.Body)
	if err := partner.ErrorFromResult(result); err != nil {
		return nil, err
	}

	rows, _ := result.Data["mandates"].([]any)
	records := make([]partner.MandateStatusRecord, 0, len(rows))
	for _, raw := range rows {
		row, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, partner.MandateStatusRecord{
			ExternalMandateID: firstString(row, "mandate_id"),
			Status:            firstString(row, "mandate_status", "status"),
			UMRN:              firstString(row, "umrn"),
		})
	}
	return records, nil
}

func (c *Client) Ping(ctx context.Context, creds partner.Credentials) error {
	resp, err := c.post(ctx, creds, healthEndpoint, "HEALTH_CHECK", map[string]any{})
	if err != nil {
		return err
	}
	return partner.ErrorFromResult(parseResult(resp.Body))
}

func (c *Client) post(ctx context.Context, creds partner.Credentials, endpoint, apiName string, body map[string]any) (*partner.Response, error) {
	return c.postWithTimeout(ctx, creds, endpoint, apiName, body, 0)
}

func (c *Client) postWithTimeout(ctx context.Context, creds partner.Credentials, endpoint, apiName string, body map[string]any, timeout time.Duration) (*partner.Response, error) {
	headers, err := buildAuthHeaders(creds)
	if err != nil {
		return nil, fmt.Errorf("building auth headers: %w", err)
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	return c.transport.Do(ctx, partner.Request{
		Method:    http.MethodPost,
		Endpoint:  endpoint,
		Headers:   headers,
		Body:      payload,
		APIName:   apiName,
		AdvisorID: creds.AdvisorID,
		Timeout:   timeout,
	})
}

// parseResult normalises a response body. Different endpoints use different
// status field names (trxn_status, reg_status, can_status), so the first one
// present wins. An unparseable body maps to a failed result rather than an
// error so the caller can classify it.
func parseResult(body []byte) partner.Result {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		return partner.Result{
			Success: false,
			Status:  "UNPARSEABLE_RESPONSE",
			Message: "partner returned an unparseable response",
		}
	}

	status := firstString(data, "trxn_status", "reg_status", "can_status", "status", "Status")
	message := firstString(data, "trxn_remark", "reg_remark", "can_remark", "remark", "message", "error_message")
	return partner.Result{
		Success: isSuccessToken(status),
		Status:  strings.TrimSpace(status),
		Message: message,
		Data:    data,
	}
}

func isSuccessToken(status string) bool {
	upper := strings.ToUpper(strings.TrimSpace(status))
	return strings.Contains(upper, "SUCCESS") || upper == "OK" || upper == "0" || upper == "100"
}

func firstString(data map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := data[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func parseFloat(data map[string]any, keys ...string) *float64 {
	for _, k := range keys {
		switch v := data[k].(type) {
		case float64:
			return &v
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}
