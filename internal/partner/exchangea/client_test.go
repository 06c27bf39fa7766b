package exchangea

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
	"github.com/wealthdesk/exchange-gateway/internal/types"
)

var testCreds = partner.Credentials{
	AdvisorID:  "adv-4",
	MemberID:   "MBR9",
	LoginID:    "opsuser",
	Secret:     "envelope-password",
	LicenseKey: "passkey-value",
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	transport := partner.NewTransport("EXCHANGE_A", partner.TransportConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Retry:   partner.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}},
	})
	return NewClient(transport)
}

func amountPtr(v float64) *float64 { return &v }

func TestSubmitOrderEnvelope(t *testing.T) {
	var gotBody, gotContentType string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		gotContentType = r.Header.Get("Content-Type")
		w.Write([]byte(`<soap:Envelope xmlns:soap="x"><soap:Body><OrderEntryParamResponse><OrderEntryParamResult>0|CONFIRMED|A-100</OrderEntryParamResult></OrderEntryParamResponse></soap:Body></soap:Envelope>`))
	})

	ack, err := client.SubmitOrder(context.Background(), testCreds, partner.OrderRequest{
		Operation:  types.OrderPurchase,
		ClientCode: "C42",
		SchemeCode: "SCH-1",
		Amount:     amountPtr(2500),
	})
	if err != nil {
		t.Fatal(err)
	}

	if !strings.Contains(gotContentType, `action="http://gateway.exchange/OrderEntryParam"`) {
		t.Errorf("content type = %q", gotContentType)
	}
	if !strings.Contains(gotBody, "<Password>envelope-password</Password>") {
		t.Errorf("password element missing: %s", gotBody)
	}
	if !strings.Contains(gotBody, "NEW|MBR9|C42|PURCHASE|SCH-1||2500.00||") {
		t.Errorf("pipe params wrong: %s", gotBody)
	}
	if ack.ExternalOrderID != "A-100" {
		t.Errorf("external id = %q", ack.ExternalOrderID)
	}
	if !ack.Result.Success {
		t.Errorf("result = %+v", ack.Result)
	}
}

func TestSubmitSystematicUsesPlanAction(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Write([]byte("0|REGISTERED|P-77"))
	})

	_, err := client.SubmitOrder(context.Background(), testCreds, partner.OrderRequest{
		Operation:    types.OrderSIP,
		ClientCode:   "C42",
		SchemeCode:   "SCH-1",
		Amount:       amountPtr(1000),
		Frequency:    "MONTHLY",
		Installments: 12,
		StartDate:    "2026-09-01",
		MandateRef:   "MND-2",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotBody, "<PlanEntryParam") {
		t.Errorf("expected plan action: %s", gotBody)
	}
	if !strings.Contains(gotBody, "MONTHLY|12|2026-09-01|MND-2") {
		t.Errorf("plan fields missing: %s", gotBody)
	}
}

func TestInitiatePaymentEnvelope(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Write([]byte("0|COLLECTED|PAY-55"))
	})

	ack, err := client.InitiatePayment(context.Background(), testCreds, partner.PaymentRequest{
		Mode:            types.PaymentNEFT,
		ClientCode:      "C42",
		ExternalOrderID: "A-100",
		Amount:          amountPtr(2500),
		UTRNumber:       "UTR000123",
	})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(gotBody, "<OrderPaymentParam") {
		t.Errorf("expected payment action: %s", gotBody)
	}
	if !strings.Contains(gotBody, "MBR9|C42|A-100|NEFT|2500.00") || !strings.Contains(gotBody, "UTR000123") {
		t.Errorf("pipe params wrong: %s", gotBody)
	}
	if ack.TransactionRef != "PAY-55" {
		t.Errorf("transaction ref = %q", ack.TransactionRef)
	}
	if !ack.Result.Success {
		t.Errorf("result = %+v", ack.Result)
	}
}

func TestOrderStatusesParsesLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("A-1|ALLOTTED|10.5|95.25|1000.13\nA-2|REJECTED||\n"))
	})

	records, err := client.OrderStatuses(context.Background(), testCreds, []string{"A-1", "A-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].Status != "ALLOTTED" || records[0].AllottedNAV == nil || *records[0].AllottedNAV != 95.25 {
		t.Errorf("record[0] = %+v", records[0])
	}
	if records[1].Status != "REJECTED" || records[1].AllottedUnits != nil {
		t.Errorf("record[1] = %+v", records[1])
	}
}

func TestCancelOrder(t *testing.T) {
	var gotBody string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Write([]byte("0|CANCELLED"))
	})

	res, err := client.CancelOrder(context.Background(), testCreds, types.OrderPurchase, "A-100")
	if err != nil {
		t.Fatal(err)
	}
	if !res.Success {
		t.Errorf("result = %+v", res)
	}
	if !strings.Contains(gotBody, "CXL|MBR9|PURCHASE|A-100") {
		t.Errorf("cancel params wrong: %s", gotBody)
	}
}

type captureSink struct {
	mu      sync.Mutex
	records []partner.CallRecord
}

func (s *captureSink) Record(rec partner.CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
}

func TestCallsAttributeAdvisorInAudit(t *testing.T) {
	sink := &captureSink{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0|SUCCESS|A-200"))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(partner.NewTransport("EXCHANGE_A", partner.TransportConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		Audit:   sink,
	}))

	if _, err := client.SubmitOrder(context.Background(), testCreds, partner.OrderRequest{
		Operation:  types.OrderPurchase,
		ClientCode: "C42",
		SchemeCode: "SCH-1",
		Amount:     amountPtr(100),
	}); err != nil {
		t.Fatal(err)
	}

	if len(sink.records) != 1 {
		t.Fatalf("audit records = %d, want 1", len(sink.records))
	}
	if got := sink.records[0].AdvisorID; got != "adv-4" {
		t.Errorf("audit advisor id = %q, want adv-4", got)
	}
}

func TestMandateStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("M-1|APPROVED|UMRN0001\nM-2|REJECTED|"))
	})

	records, err := client.MandateStatuses(context.Background(), testCreds, []string{"M-1", "M-2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d", len(records))
	}
	if records[0].UMRN != "UMRN0001" {
		t.Errorf("record[0] = %+v", records[0])
	}
}
