package exchangea

import (
	"encoding/xml"
	"regexp"
	"strings"

	"github.com/wealthdesk/exchange-gateway/internal/partner"
)

const envelopeTemplate = `<?xml version="1.0" encoding="utf-8"?>
<soap12:Envelope xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xmlns:xsd="http://www.w3.org/2001/XMLSchema" xmlns:soap12="http://www.w3.org/2003/05/soap-envelope">
  <soap12:Body>
    %BODY%
  </soap12:Body>
</soap12:Envelope>`

// buildEnvelope wraps an operation body in the partner's SOAP 1.2 envelope.
// All values are XML-escaped before insertion.
func buildEnvelope(action string, fields map[string]string, order []string) string {
	var b strings.Builder
	b.WriteString("<" + action + ` xmlns="http://gateway.exchange/">`)
	for _, name := range order {
		b.WriteString("<" + name + ">")
		xml.EscapeText(&b, []byte(fields[name]))
		b.WriteString("</" + name + ">")
	}
	b.WriteString("</" + action + ">")
	return strings.Replace(envelopeTemplate, "%BODY%", b.String(), 1)
}

// buildParams joins positional fields into the pipe-delimited parameter
// string the order entry API expects. Pipes inside values would shift every
// following field, so they are stripped.
func buildParams(fields []string) string {
	cleaned := make([]string, len(fields))
	for i, f := range fields {
		cleaned[i] = strings.ReplaceAll(f, "|", " ")
	}
	return strings.Join(cleaned, "|")
}

var resultTagPattern = regexp.MustCompile(`(?s)<(?:\w+:)?(\w+Result)>(.*?)</(?:\w+:)?\w+Result>`)

// extractResult pulls the pipe-delimited payload out of a response envelope.
// A body with no XML markup is already the payload.
func extractResult(body string) string {
	if !strings.Contains(body, "<") {
		return strings.TrimSpace(body)
	}
	if m := resultTagPattern.FindStringSubmatch(body); m != nil {
		return strings.TrimSpace(unescape(m[2]))
	}
	return ""
}

func unescape(s string) string {
	r := strings.NewReplacer("&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'", "&amp;", "&")
	return r.Replace(s)
}

// parseResult interprets a pipe-delimited response line. The layout is
// flag|message[|reference]: flag "0" (or any SUCCESS token) means accepted,
// anything else is the partner's failure code.
func parseResult(body []byte) partner.Result {
	payload := extractResult(string(body))
	if payload == "" {
		return partner.Result{
			Success: false,
			Status:  "UNPARSEABLE_RESPONSE",
			Message: "partner returned an unparseable response",
		}
	}

	parts := strings.Split(payload, "|")
	flag := strings.TrimSpace(parts[0])
	message := ""
	if len(parts) > 1 {
		message = strings.TrimSpace(parts[1])
	}
	reference := ""
	if len(parts) > 2 {
		reference = strings.TrimSpace(parts[2])
	}

	success := flag == "0" || strings.Contains(strings.ToUpper(flag), "SUCCESS")
	status := flag
	if !success && message != "" && looksLikeCode(message) {
		status = message
	}
	return partner.Result{
		Success: success,
		Status:  status,
		Message: message,
		Data: map[string]any{
			"segments":  parts,
			"reference": reference,
		},
	}
}

// looksLikeCode distinguishes status tokens such as TRXN_FAILED from prose.
func looksLikeCode(s string) bool {
	return !strings.Contains(s, " ") && strings.ToUpper(s) == s
}
