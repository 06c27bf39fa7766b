package exchangea

import (
	"strings"
	"testing"
)

func TestBuildEnvelopeEscapesValues(t *testing.T) {
	out := buildEnvelope("OrderEntryParam",
		map[string]string{"UserId": "u<1>", "Param": "a|b&c"},
		[]string{"UserId", "Param"})

	if !strings.Contains(out, "<soap12:Envelope") {
		t.Errorf("missing envelope: %s", out)
	}
	if !strings.Contains(out, "<UserId>u&lt;1&gt;</UserId>") {
		t.Errorf("value not escaped: %s", out)
	}
	if !strings.Contains(out, "<Param>a|b&amp;c</Param>") {
		t.Errorf("ampersand not escaped: %s", out)
	}
	if strings.Index(out, "<UserId>") > strings.Index(out, "<Param>") {
		t.Error("field order not preserved")
	}
}

func TestBuildParamsStripsPipes(t *testing.T) {
	out := buildParams([]string{"NEW", "M|1", "C42"})
	if out != "NEW|M 1|C42" {
		t.Errorf("params = %q", out)
	}
}

func TestExtractResultFromEnvelope(t *testing.T) {
	body := `<?xml version="1.0"?><soap:Envelope xmlns:soap="x"><soap:Body>
		<OrderEntryParamResponse><OrderEntryParamResult>0|ORDER CONFIRMED|A-991</OrderEntryParamResult></OrderEntryParamResponse>
	</soap:Body></soap:Envelope>`
	if got := extractResult(body); got != "0|ORDER CONFIRMED|A-991" {
		t.Errorf("extractResult = %q", got)
	}
}

func TestExtractResultPlainPayload(t *testing.T) {
	if got := extractResult("  0|OK|X-1  "); got != "0|OK|X-1" {
		t.Errorf("extractResult = %q", got)
	}
}

func TestParseResultSuccess(t *testing.T) {
	res := parseResult([]byte("0|ORDER CONFIRMED|A-991"))
	if !res.Success {
		t.Fatalf("result = %+v", res)
	}
	if ref, _ := res.Data["reference"].(string); ref != "A-991" {
		t.Errorf("reference = %q", ref)
	}
}

func TestParseResultFailureUsesCodeToken(t *testing.T) {
	res := parseResult([]byte("1|TRXN_FAILED|"))
	if res.Success {
		t.Fatal("flag 1 must not be success")
	}
	if res.Status != "TRXN_FAILED" {
		t.Errorf("status = %q", res.Status)
	}
}

func TestParseResultFailureWithProseMessage(t *testing.T) {
	res := parseResult([]byte("1|scheme closed for subscription"))
	if res.Success {
		t.Fatal("expected failure")
	}
	if res.Status != "1" {
		t.Errorf("status = %q, want raw flag when message is prose", res.Status)
	}
	if res.Message != "scheme closed for subscription" {
		t.Errorf("message = %q", res.Message)
	}
}

func TestParseResultUnparseable(t *testing.T) {
	res := parseResult([]byte("<html>gateway timeout</html>"))
	if res.Success || res.Status != "UNPARSEABLE_RESPONSE" {
		t.Errorf("result = %+v", res)
	}
}
