package partner

import (
	"encoding/json"
	"regexp"
	"strings"
)

const redactedPlaceholder = "***REDACTED***"

var (
	// Tax identifiers look like ABCDE1234F and show up in free-text remarks.
	panPattern = regexp.MustCompile(`\b[A-Z]{5}[0-9]{4}[A-Z]\b`)

	xmlSecretPattern = regexp.MustCompile(`(?i)<(Password|PassKey|LicenseKey)>[^<]*</(Password|PassKey|LicenseKey)>`)

	sensitiveKeys = map[string]struct{}{
		"password":           {},
		"passkey":            {},
		"pass_key":           {},
		"secret":             {},
		"api_secret":         {},
		"apisecret":          {},
		"token":              {},
		"authorization":      {},
		"license_key":        {},
		"licensekey":         {},
		"member_license_key": {},
		"pan":                {},
		"pan_no":             {},
		"account_no":         {},
		"account_number":     {},
		"accountnumber":      {},
	}
)

// Redact strips credentials and personal identifiers from a payload before it
// is persisted to the audit trail. JSON payloads are walked key by key; XML
// and free text fall back to pattern scrubbing.
func Redact(payload []byte) string {
	if len(payload) == 0 {
		return ""
	}
	var parsed any
	if err := json.Unmarshal(payload, &parsed); err == nil {
		redacted := redactValue(parsed)
		if out, err := json.Marshal(redacted); err == nil {
			return redactText(string(out))
		}
	}
	return redactText(string(payload))
}

// RedactHeaders copies headers with sensitive values masked.
func RedactHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
			out[k] = redactedPlaceholder
		} else {
			out[k] = v
		}
	}
	return out
}

func redactText(s string) string {
	s = xmlSecretPattern.ReplaceAllString(s, "<$1>"+redactedPlaceholder+"</$2>")
	return panPattern.ReplaceAllString(s, redactedPlaceholder)
}

func redactValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, inner := range val {
			if _, sensitive := sensitiveKeys[strings.ToLower(k)]; sensitive {
				out[k] = redactedPlaceholder
				continue
			}
			out[k] = redactValue(inner)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = redactValue(inner)
		}
		return out
	default:
		return v
	}
}
