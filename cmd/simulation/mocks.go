package main

// Mock partner exchanges. Each one accepts any credentials, acknowledges
// submissions with a fresh reference, rejects a small slice of traffic so the
// failure paths see real use, and reports everything it accepted as ALLOTTED
// (orders) or APPROVED (mandates) once the reconciliation pollers come asking.

import (
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Fraction of submissions each mock exchange turns away.
const rejectRate = 0.08

// serveMock binds a mock exchange to a random loopback port and returns its
// base URL.
func serveMock(name string, handler http.Handler) (string, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", fmt.Errorf("starting mock %s: %w", name, err)
	}
	go func() {
		if err := http.Serve(listener, handler); err != nil {
			log.Error().Err(err).Str("exchange", name).Msg("Mock exchange stopped")
		}
	}()
	return "http://" + listener.Addr().String(), nil
}

// mockExchangeB speaks the JSON dialect.
type mockExchangeB struct {
	mu     sync.Mutex
	nextID int
}

func newMockExchangeB() *mockExchangeB {
	return &mockExchangeB{}
}

func (m *mockExchangeB) allocate(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("%s%06d", prefix, m.nextID)
}

func (m *mockExchangeB) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	_ = json.NewDecoder(r.Body).Decode(&req)

	switch {
	case strings.HasSuffix(r.URL.Path, "/transaction/PAYMENT"):
		if rand.Float64() < rejectRate {
			writeJSON(w, map[string]any{"status": "PAYMENT_FAILED", "remark": "bank declined the debit"})
			return
		}
		writeJSON(w, map[string]any{"status": "PAYMENT_SUCCESS", "transaction_ref": m.allocate("BP")})

	case strings.Contains(r.URL.Path, "/transaction/") || strings.HasSuffix(r.URL.Path, "/registration/SYSTEMATIC"):
		if rand.Float64() < rejectRate {
			writeJSON(w, map[string]any{"trxn_status": "TRXN_FAILED", "trxn_remark": "SCHEME_SUSPENDED"})
			return
		}
		writeJSON(w, map[string]any{"trxn_status": "TRXN_SUCCESS", "order_id": m.allocate("B")})

	case strings.Contains(r.URL.Path, "/cancellation/"):
		writeJSON(w, map[string]any{"can_status": "CAN_SUCCESS"})

	case strings.HasSuffix(r.URL.Path, "/reports/ORDER_STATUS"):
		ids, _ := req["order_ids"].(string)
		rows := make([]any, 0)
		for _, id := range splitIDs(ids) {
			rows = append(rows, map[string]any{
				"order_id":        id,
				"order_status":    "ALLOTTED",
				"allotted_units":  "100.000",
				"allotted_nav":    "25.5000",
				"allotted_amount": "2550.00",
			})
		}
		writeJSON(w, map[string]any{"status": "SUCCESS", "orders": rows})

	case strings.HasSuffix(r.URL.Path, "/registration/MANDATE"):
		if rand.Float64() < rejectRate {
			writeJSON(w, map[string]any{"reg_status": "REG_FAILED", "reg_remark": "account could not be verified"})
			return
		}
		id := m.allocate("BM")
		writeJSON(w, map[string]any{
			"reg_status": "REG_SUCCESS",
			"mandate_id": id,
			"auth_url":   "https://auth.exchange-b.test/mandates/" + id,
		})

	case strings.HasSuffix(r.URL.Path, "/reports/MANDATE_STATUS"):
		ids, _ := req["mandate_ids"].(string)
		rows := make([]any, 0)
		for _, id := range splitIDs(ids) {
			rows = append(rows, map[string]any{
				"mandate_id":     id,
				"mandate_status": "APPROVED",
				"umrn":           "UMRN" + id,
			})
		}
		writeJSON(w, map[string]any{"status": "SUCCESS", "mandates": rows})

	default:
		writeJSON(w, map[string]any{"status": "OK"})
	}
}

func writeJSON(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

const soapResponseTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap12:Envelope xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
  <soap12:Body>
    <%[1]sResponse xmlns="http://gateway.exchange/"><%[1]sResult>%[2]s</%[1]sResult></%[1]sResponse>
  </soap12:Body>
</soap12:Envelope>`

var paramPattern = regexp.MustCompile(`(?s)<Param>(.*?)</Param>`)

// mockExchangeA speaks the SOAP dialect with pipe-delimited payloads.
type mockExchangeA struct {
	mu     sync.Mutex
	nextID int
}

func newMockExchangeA() *mockExchangeA {
	return &mockExchangeA{}
}

func (m *mockExchangeA) allocate(prefix string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("%s%06d", prefix, m.nextID)
}

func (m *mockExchangeA) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	body := string(raw)

	param := ""
	if match := paramPattern.FindStringSubmatch(body); match != nil {
		param = strings.TrimSpace(match[1])
	}

	var action, payload string
	switch {
	case strings.Contains(body, "<OrderEntryParam") || strings.Contains(body, "<PlanEntryParam"):
		action = "OrderEntryParam"
		if rand.Float64() < rejectRate {
			payload = "1|TRXN_FAILED"
		} else {
			payload = "0|ACCEPTED|" + m.allocate("A")
		}

	case strings.Contains(body, "<OrderPaymentParam"):
		action = "OrderPaymentParam"
		if rand.Float64() < rejectRate {
			payload = "1|PAYMENT_FAILED"
		} else {
			payload = "0|COLLECTED|" + m.allocate("AP")
		}

	case strings.Contains(body, "<OrderCancelParam"):
		action, payload = "OrderCancelParam", "0|CANCELLED"

	case strings.Contains(body, "<OrderStatusQuery"):
		action = "OrderStatusQuery"
		var lines []string
		for _, id := range splitIDs(param) {
			lines = append(lines, id+"|ALLOTTED|100.000|25.5000|2550.00")
		}
		payload = strings.Join(lines, "\n")

	case strings.Contains(body, "<MandateEntryParam"):
		action = "MandateEntryParam"
		if rand.Float64() < rejectRate {
			payload = "1|REG_FAILED"
		} else {
			payload = "0|ACCEPTED|" + m.allocate("AM")
		}

	case strings.Contains(body, "<MandateStatusQuery"):
		action = "MandateStatusQuery"
		var lines []string
		for _, id := range splitIDs(param) {
			lines = append(lines, id+"|APPROVED|UMRN"+id)
		}
		payload = strings.Join(lines, "\n")

	default:
		action, payload = "ConnectivityCheck", "0|OK"
	}

	w.Header().Set("Content-Type", "application/soap+xml; charset=utf-8")
	fmt.Fprintf(w, soapResponseTemplate, action, payload)
}

func splitIDs(csv string) []string {
	var ids []string
	for _, id := range strings.Split(csv, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
