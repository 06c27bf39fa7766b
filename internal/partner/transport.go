package partner

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultCallTimeout bounds a single attempt against a partner exchange.
const DefaultCallTimeout = 30 * time.Second

// CallRecord is what the transport hands to the audit sink after every call,
// successful or not. Request and response bodies are already redacted.
type CallRecord struct {
	Exchange     string
	APIName      string
	AdvisorID    string
	Method       string
	Endpoint     string
	RequestData  string
	ResponseData string
	StatusCode   int
	LatencyMs    int64
	ErrorMessage string
}

// AuditSink receives call records. Implementations must not block; the
// transport calls Record on the request path.
type AuditSink interface {
	Record(rec CallRecord)
}

// CallObserver receives metrics-grade signals from the transport.
type CallObserver interface {
	ObserveCall(exchange, api, outcome string, latency time.Duration)
	ObserveBreakerState(exchange, state string)
}

type Request struct {
	Method    string
	Endpoint  string
	Headers   map[string]string
	Body      []byte
	APIName   string
	AdvisorID string
	Timeout   time.Duration
}

type Response struct {
	StatusCode int
	Body       []byte
}

// TransportConfig wires a Transport. Zero values take the production
// defaults; tests inject shorter timeouts and fake clocks via Breaker/Retry.
type TransportConfig struct {
	BaseURL    string
	Timeout    time.Duration
	Breaker    BreakerConfig
	Retry      RetryPolicy
	HTTPClient *http.Client
	Audit      AuditSink
	Observer   CallObserver
}

// Transport executes HTTP calls against one exchange with the full
// resilience stack: retry inside the breaker, so a call that recovers on a
// retry counts as a breaker success.
type Transport struct {
	exchange string
	baseURL  string
	timeout  time.Duration
	client   *http.Client
	breaker  *Breaker
	retry    RetryPolicy
	audit    AuditSink
	observer CallObserver
	logger   zerolog.Logger
}

func NewTransport(exchange string, cfg TransportConfig) *Transport {
	t := &Transport{
		exchange: exchange,
		baseURL:  cfg.BaseURL,
		timeout:  cfg.Timeout,
		client:   cfg.HTTPClient,
		retry:    cfg.Retry,
		audit:    cfg.Audit,
		observer: cfg.Observer,
		logger:   log.With().Str("component", "partner_transport").Str("exchange", exchange).Logger(),
	}
	if t.timeout <= 0 {
		t.timeout = DefaultCallTimeout
	}
	if t.client == nil {
		t.client = &http.Client{}
	}
	if t.retry.MaxRetries == 0 && t.retry.BaseDelay == 0 {
		t.retry = DefaultRetryPolicy()
	}

	breakerCfg := cfg.Breaker
	userHook := breakerCfg.OnStateChange
	breakerCfg.OnStateChange = func(from, to BreakerState) {
		t.logger.Warn().Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		if t.observer != nil {
			t.observer.ObserveBreakerState(exchange, to.String())
		}
		if userHook != nil {
			userHook(from, to)
		}
	}
	t.breaker = NewBreaker(breakerCfg)
	return t
}

func (t *Transport) BreakerState() BreakerState {
	return t.breaker.State()
}

// Do executes a request with retry and circuit breaking, then records a
// redacted audit entry. A nil error guarantees a non-nil response, though the
// HTTP status may still be non-2xx; decoding is the caller's job.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	url := t.baseURL + req.Endpoint
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = t.timeout
	}

	start := time.Now()
	var resp *Response

	err := t.breaker.Execute(func() error {
		return t.retry.Do(ctx, func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			httpReq, err := http.NewRequestWithContext(attemptCtx, req.Method, url, bytes.NewReader(req.Body))
			if err != nil {
				return err
			}
			for k, v := range req.Headers {
				httpReq.Header.Set(k, v)
			}

			res, err := t.client.Do(httpReq)
			if err != nil {
				if IsTransient(err) {
					return &TransientError{Err: err}
				}
				return err
			}
			defer res.Body.Close()

			body, err := io.ReadAll(res.Body)
			if err != nil {
				return &TransientError{Err: err}
			}
			resp = &Response{StatusCode: res.StatusCode, Body: body}
			return nil
		})
	})

	latency := time.Since(start)
	t.recordAudit(req, resp, err, url, latency)

	if t.observer != nil {
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		t.observer.ObserveCall(t.exchange, req.APIName, outcome, latency)
	}

	if err != nil {
		t.logger.Warn().Err(err).Str("api", req.APIName).Str("endpoint", req.Endpoint).Msg("partner call failed")
		return nil, err
	}
	return resp, nil
}

func (t *Transport) recordAudit(req Request, resp *Response, callErr error, url string, latency time.Duration) {
	if t.audit == nil {
		return
	}
	rec := CallRecord{
		Exchange:    t.exchange,
		APIName:     req.APIName,
		AdvisorID:   req.AdvisorID,
		Method:      req.Method,
		Endpoint:    url,
		RequestData: Redact(req.Body),
		LatencyMs:   latency.Milliseconds(),
	}
	if resp != nil {
		rec.StatusCode = resp.StatusCode
		rec.ResponseData = Redact(resp.Body)
	}
	if callErr != nil {
		rec.ErrorMessage = callErr.Error()
	}
	t.audit.Record(rec)
}
