package validate

// Sentinel defaults are fixed placeholder values the model is instructed to
// emit when it finds no real value for a field. A critical field holding its
// sentinel is exempt from the evidence hard-fail rule: the model admitted it
// found nothing, rather than asserting a value without citation.
//
// The table is keyed by the path's terminal field name. Matching a value
// against a per-field constant is a blunt heuristic; it lives here so it can
// be revisited without touching the evidence validation itself.
var sentinelDefaults = map[string]any{
	"name":         "UNKNOWN",
	"addressLine1": "UNKNOWN",
	"city":         "UNKNOWN",
	"description":  "UNKNOWN",
	"trackingNum":  "00000",
	"postalCode":   "00000",
}

// IsSentinelDefault reports whether value is the known placeholder for the
// given terminal field key.
func IsSentinelDefault(terminalKey string, value any) bool {
	want, ok := sentinelDefaults[terminalKey]
	if !ok {
		return false
	}
	switch v := value.(type) {
	case string:
		s, ok := want.(string)
		return ok && v == s
	case float64:
		f, ok := want.(float64)
		return ok && v == f
	default:
		return false
	}
}
