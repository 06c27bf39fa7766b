package partner

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

type memorySink struct {
	mu   sync.Mutex
	recs []CallRecord
}

func (s *memorySink) Record(rec CallRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *memorySink) all() []CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CallRecord(nil), s.recs...)
}

func newTestTransport(baseURL string, sink AuditSink) *Transport {
	return NewTransport("EXCHANGE_B", TransportConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		Retry:   RetryPolicy{MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}},
		Audit:   sink,
	})
}

func TestTransportSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Api") != "yes" {
			t.Error("request header not forwarded")
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"trxn_status":"TRXN_SUCCESS"}`))
	}))
	defer srv.Close()

	sink := &memorySink{}
	tr := newTestTransport(srv.URL, sink)

	resp, err := tr.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/orders",
		Headers:  map[string]string{"X-Api": "yes"},
		Body:     []byte(`{"client_code":"C1"}`),
		APIName:  "ORDER_ENTRY",
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	recs := sink.all()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d, want 1", len(recs))
	}
	if recs[0].StatusCode != http.StatusOK || recs[0].APIName != "ORDER_ENTRY" {
		t.Errorf("audit record = %+v", recs[0])
	}
}

func TestTransportRetriesTransientThenSucceeds(t *testing.T) {
	var calls int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			// Outlast the per-attempt timeout so the client gives up.
			time.Sleep(300 * time.Millisecond)
			return
		}
		w.Write([]byte(`ok`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, nil)
	resp, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "/status", Timeout: 50 * time.Millisecond})
	if err != nil {
		t.Fatalf("expected recovery on retry, got %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Errorf("body = %q", resp.Body)
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestTransportAuditRedactsSecrets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","token":"resp-token"}`))
	}))
	defer srv.Close()

	sink := &memorySink{}
	tr := newTestTransport(srv.URL, sink)

	_, err := tr.Do(context.Background(), Request{
		Method:   http.MethodPost,
		Endpoint: "/auth",
		Body:     []byte(`{"loginId":"L1","password":"hunter2"}`),
		APIName:  "AUTH",
	})
	if err != nil {
		t.Fatal(err)
	}

	recs := sink.all()
	if len(recs) != 1 {
		t.Fatalf("audit records = %d", len(recs))
	}
	if strings.Contains(recs[0].RequestData, "hunter2") {
		t.Errorf("request secret leaked into audit: %s", recs[0].RequestData)
	}
	if strings.Contains(recs[0].ResponseData, "resp-token") {
		t.Errorf("response secret leaked into audit: %s", recs[0].ResponseData)
	}
	if !strings.Contains(recs[0].RequestData, "L1") {
		t.Errorf("non-sensitive field lost: %s", recs[0].RequestData)
	}
}

func TestTransportBreakerFailsFastAndAudits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hj := w.(http.Hijacker)
		conn, _, _ := hj.Hijack()
		conn.Close()
	}))
	defer srv.Close()

	sink := &memorySink{}
	tr := NewTransport("EXCHANGE_A", TransportConfig{
		BaseURL: srv.URL,
		Timeout: time.Second,
		Breaker: BreakerConfig{MinVolume: 2},
		Retry:   RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}},
		Audit:   sink,
	})

	for i := 0; i < 2; i++ {
		if _, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "/x"}); err == nil {
			t.Fatal("expected transport failure")
		}
	}
	if tr.BreakerState() != StateOpen {
		t.Fatalf("breaker state = %s, want OPEN", tr.BreakerState())
	}

	_, err := tr.Do(context.Background(), Request{Method: http.MethodGet, Endpoint: "/x"})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}

	recs := sink.all()
	last := recs[len(recs)-1]
	if !strings.Contains(last.ErrorMessage, "circuit breaker is open") {
		t.Errorf("fail-fast call not audited: %+v", last)
	}
}

func TestTransportNonTwoHundredIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"status":"INVALID_CLIENT_CODE"}`))
	}))
	defer srv.Close()

	tr := newTestTransport(srv.URL, nil)
	resp, err := tr.Do(context.Background(), Request{Method: http.MethodPost, Endpoint: "/orders"})
	if err != nil {
		t.Fatalf("HTTP 400 should return a response, got error %v", err)
	}
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d", resp.StatusCode)
	}
}
