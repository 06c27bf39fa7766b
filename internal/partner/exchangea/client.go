// Package exchangea implements the partner.Client for the legacy XML
// exchange: SOAP 1.2 envelopes with an action header, and order parameters
// packed into a single pipe-delimited string.
package exchangea

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

const (
	actionNamespace = "http://gateway.exchange/"

	actionOrderEntry    = "OrderEntryParam"
	actionPlanEntry     = "PlanEntryParam"
	actionOrderCancel   = "OrderCancelParam"
	actionOrderPayment  = "OrderPaymentParam"
	actionOrderStatus   = "OrderStatusQuery"
	actionMandateEntry  = "MandateEntryParam"
	actionMandateStatus = "MandateStatusQuery"
	actionHealth        = "ConnectivityCheck"

	serviceEndpoint = "/gateway/service.svc"
)

// Transaction codes used in the pipe-delimited parameter string.
const (
	transNew    = "NEW"
	transCancel = "CXL"
)

// Status queries get a longer deadline than transactional calls; payment
// initiations sit in between because the partner checks with the bank.
const (
	reportTimeout  = 60 * time.Second
	paymentTimeout = 45 * time.Second
)

type Client struct {
	transport *partner.Transport
}

func NewClient(transport *partner.Transport) *Client {
	return &Client{transport: transport}
}

func (c *Client) Exchange() types.Exchange {
	return types.ExchangeA
}

func (c *Client) SubmitOrder(ctx context.Context, creds partner.Credentials, req partner.OrderRequest) (*partner.OrderAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	action := actionOrderEntry
	params := []string{
		transNew,
		creds.MemberID,
		req.ClientCode,
		string(req.Operation),
		req.SchemeCode,
		req.TargetSchemeCode,
		formatAmount(req.Amount),
		formatAmount(req.Units),
		req.FolioNumber,
	}
	if req.Operation.Systematic() {
		action = actionPlanEntry
		params = append(params, req.Frequency, strconv.Itoa(req.Installments), req.StartDate, req.MandateRef)
	}

	resp, err := c.call(ctx, creds, action, "ORDER_ENTRY", buildParams(params))
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.OrderAck{
		ExternalOrderID: reference(result),
		Result:          result,
	}, nil
}

func (c *Client) CancelOrder(ctx context.Context, creds partner.Credentials, operation types.OrderType, externalOrderID string) (*partner.Result, error) {
	params := buildParams([]string{transCancel, creds.MemberID, string(operation), externalOrderID})
	resp, err := c.call(ctx, creds, actionOrderCancel, "ORDER_CANCEL", params)
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
	params := buildParams([]string{
		creds.MemberID,
		req.ClientCode,
		req.ExternalOrderID,
		string(req.Mode),
		formatAmount(req.Amount),
		req.BankCode,
		req.VPA,
		req.UTRNumber,
		req.ChequeNumber,
		req.ChequeDate,
		req.MandateRef,
	})

	resp, err := c.callWithTimeout(ctx, creds, actionOrderPayment, "ORDER_PAYMENT", params, paymentTimeout)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.PaymentAck{
		TransactionRef: reference(result),
		Result:         result,
	}, nil
}

func (c *Client) OrderStatuses(ctx context.Context, creds partner.Credentials, externalOrderIDs []string) ([]partner.OrderStatusRecord, error) {
	resp, err := c.callWithTimeout(ctx, creds, actionOrderStatus, "ORDER_STATUS_REPORT", strings.Join(externalOrderIDs, ","), reportTimeout)
	if err != nil {
		return nil, err
	}

	payload := extractResult(string(resp.Body))
	if payload == "" {
		return nil, &partner.Error{Kind: partner.KindUnknown, Code: "UNPARSEABLE_RESPONSE", Message: "empty status report"}
	}

	// One pipe-delimited row per line: id|status|units|nav|amount.
	var records []partner.OrderStatusRecord
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		rec := partner.OrderStatusRecord{
			ExternalOrderID: strings.TrimSpace(parts[0]),
			Status:          strings.TrimSpace(parts[1]),
		}
		if len(parts) > 2 {
			rec.AllottedUnits = parsePipeFloat(parts[2])
		}
		if len(parts) > 3 {
			rec.AllottedNAV = parsePipeFloat(parts[3])
		}
		if len(parts) > 4 {
			rec.AllottedAmount = parsePipeFloat(parts[4])
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) RegisterMandate(ctx context.Context, creds partner.Credentials, req partner.MandateRequest) (*partner.MandateAck, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	params := buildParams([]string{
		creds.MemberID,
		req.ClientCode,
		string(req.Type),
		strconv.FormatFloat(req.Amount, 'f', 2, 64),
		req.AccountNumber,
		req.IFSCCode,
		req.BankName,
		req.StartDate,
		req.EndDate,
	})

	resp, err := c.call(ctx, creds, actionMandateEntry, "MANDATE_REGISTRATION", params)
	if err != nil {
		return nil, err
	}
	result := parseResult(resp.Body)
	return &partner.MandateAck{
		ExternalMandateID: reference(result),
		Result:            result,
	}, nil
}

func (c *Client) MandateStatuses(ctx context.Context, creds partner.Credentials, externalMandateIDs []string) ([]partner.MandateStatusRecord, error) {
	resp, err := c.callWithTimeout(ctx, creds, actionMandateStatus, "MANDATE_STATUS_REPORT", strings.Join(externalMandateIDs, ","), reportTimeout)
	if err != nil {
		return nil, err
	}

	payload := extractResult(string(resp.Body))
	if payload == "" {
		return nil, &partner.Error{Kind: partner.KindUnknown, Code: "UNPARSEABLE_RESPONSE", Message: "empty mandate report"}
	}

	var records []partner.MandateStatusRecord
	for _, line := range strings.Split(payload, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		rec := partner.MandateStatusRecord{
			ExternalMandateID: strings.TrimSpace(parts[0]),
			Status:            strings.TrimSpace(parts[1]),
		}
		if len(parts) > 2 {
			rec.UMRN = strings.TrimSpace(parts[2])
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) Ping(ctx context.Context, creds partner.Credentials) error {
	resp, err := c.call(ctx, creds, actionHealth, "HEALTH_CHECK", "")
	if err != nil {
		return err
	}
	return partner.ErrorFromResult(parseResult(resp.Body))
}

func (c *Client) call(ctx context.Context, creds partner.Credentials, action, apiName, param string) (*partner.Response, error) {
	return c.callWithTimeout(ctx, creds, action, apiName, param, 0)
}

func (c *Client) callWithTimeout(ctx context.Context, creds partner.Credentials, action, apiName, param string, timeout time.Duration) (*partner.Response, error) {
	fields := map[string]string{
		"UserId":   creds.LoginID,
		"MemberId": creds.MemberID,
		"Password": creds.Secret,
		"PassKey":  creds.LicenseKey,
		"Param":    param,
	}
	order := []string{"UserId", "MemberId", "Password", "PassKey", "Param"}
	body := buildEnvelope(action, fields, order)

	return c.transport.Do(ctx, partner.Request{
		Method:   http.MethodPost,
		Endpoint: serviceEndpoint,
		Headers: map[string]string{
			"Content-Type": fmt.Sprintf(`application/soap+xml; charset=utf-8; action="%s%s"`, actionNamespace, action),
		},
		Body:      []byte(body),
		APIName:   apiName,
		AdvisorID: creds.AdvisorID,
		Timeout:   timeout,
	})
}

func reference(result partner.Result) string {
	ref, _ := result.Data["reference"].(string)
	return ref
}

func formatAmount(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 2, 64)
}

func parsePipeFloat(s string) *float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &f
}
