package partner

import "strings"

// Result is the normalised outcome of one partner call, independent of the
// exchange's wire format. Status carries the raw status token; Data keeps the
// already-parsed payload for exchange-specific extraction.
type Result struct {
	Success bool
	Status  string
	Message string
	Data    map[string]any
}

// ErrorFromResult maps a failed Result onto the typed error taxonomy. A
// successful result returns nil.
func ErrorFromResult(r Result) error {
	if r.Success {
		return nil
	}
	status := strings.ToUpper(strings.TrimSpace(r.Status))
	kind := classify(status)
	msg := r.Message
	if msg == "" {
		msg = "request rejected by partner"
	}
	return &Error{Kind: kind, Code: status, Message: msg}
}

func classify(status string) ErrorKind {
	switch {
	case containsAny(status, "INVALID_AUTH", "AUTH_FAILED", "INVALID_MEMBER", "IP_NOT_WHITELISTED", "SIGNATURE"):
		return KindAuthentication
	case containsAny(status, "MANDATE"):
		return KindMandate
	case containsAny(status, "CAN_FAILED", "CANCEL"):
		return KindCancellation
	case containsAny(status, "INVALID_CLIENT", "CLIENT_NOT_FOUND", "KYC", "REG_FAILED"):
		return KindClientValidation
	case containsAny(status, "TRXN_FAILED", "TRXN FAILED", "INVALID_SCHEME", "INVALID_AMOUNT", "INSUFFICIENT"):
		return KindTransaction
	case containsAny(status, "SERVICE_UNAVAILABLE", "SYSTEM_ERROR", "TIMEOUT", "TRY_AGAIN"):
		return KindSystemUnavailable
	default:
		return KindUnknown
	}
}

func containsAny(s string, tokens ...string) bool {
	for _, tok := range tokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}
