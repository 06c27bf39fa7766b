package partner

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestRedactJSONSecrets(t *testing.T) {
	payload := []byte(`{
		"loginId": "ARN123",
		"password": "hunter2",
		"api_secret": "s3cr3t",
		"nested": {"token": "abc", "scheme_code": "GF01"},
		"list": [{"license_key": "LK-1234567890123456"}]
	}`)

	out := Redact(payload)
	for _, leaked := range []string{"hunter2", "s3cr3t", "abc", "LK-1234567890123456"} {
		if strings.Contains(out, leaked) {
			t.Errorf("redacted output still contains %q: %s", leaked, out)
		}
	}
	for _, kept := range []string{"ARN123", "GF01"} {
		if !strings.Contains(out, kept) {
			t.Errorf("redaction dropped non-sensitive value %q: %s", kept, out)
		}
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("redacted output is no longer valid JSON: %v", err)
	}
}

func TestRedactXMLTags(t *testing.T) {
	payload := []byte(`<OrderEntry><UserId>U1</UserId><Password>topsecret</Password><PassKey>pk-99</PassKey></OrderEntry>`)
	out := Redact(payload)
	if strings.Contains(out, "topsecret") || strings.Contains(out, "pk-99") {
		t.Errorf("XML secrets survived redaction: %s", out)
	}
	if !strings.Contains(out, "<UserId>U1</UserId>") {
		t.Errorf("non-sensitive XML mangled: %s", out)
	}
}

func TestRedactPANPattern(t *testing.T) {
	out := Redact([]byte(`order rejected for holder ABCDE1234F, please verify`))
	if strings.Contains(out, "ABCDE1234F") {
		t.Errorf("PAN survived redaction: %s", out)
	}
}

func TestRedactPANInsideJSONString(t *testing.T) {
	out := Redact([]byte(`{"remark": "KYC pending for ABCDE1234F"}`))
	if strings.Contains(out, "ABCDE1234F") {
		t.Errorf("PAN inside JSON value survived: %s", out)
	}
}

func TestRedactHeaders(t *testing.T) {
	headers := map[string]string{
		"Authorization": "BASIC abcdef",
		"Content-Type":  "application/json",
	}
	out := RedactHeaders(headers)
	if out["Authorization"] != redactedPlaceholder {
		t.Errorf("Authorization = %q", out["Authorization"])
	}
	if out["Content-Type"] != "application/json" {
		t.Errorf("Content-Type = %q", out["Content-Type"])
	}
}

func TestRedactEmptyPayload(t *testing.T) {
	if out := Redact(nil); out != "" {
		t.Errorf("Redact(nil) = %q, want empty", out)
	}
}
