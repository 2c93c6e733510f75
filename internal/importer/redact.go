package importer

import (
	"encoding/json"
	"unicode/utf8"
)

const maxExcerpt = 160

var redactedKeys = map[string]bool{
	"name":         true,
	"patientname":  true,
	"password":     true,
	"passwordhash": true,
	"passwd":       true,
	"pw":           true,
	"birthdate":    true,
	"dob":          true,
	"birthday":     true,
	"dateofbirth":  true,

	// clinical free text
	"report":      true,
	"reporttext":  true,
	"body":        true,
	"findings":    true,
	"diagnosis":   true,
	"conclusion":  true,
	"impression":  true,
	"history":     true,
	"casehistory": true,
	"memo":        true,
	"note":        true,
	"answer":      true,
	"explanation": true,
}

// Excerpt renders a record for logs with personal fields masked and the
// result cut to a bounded length.
func Excerpt(fields map[string]any) string {
	if fields == nil {
		return ""
	}
	safe := make(map[string]any, len(fields))
	for k, v := range fields {
		if redactedKeys[k] && !blank(v) {
			safe[k] = "***"
			continue
		}
		safe[k] = v
	}

	b, err := json.Marshal(safe)
	if err != nil {
		return "<unprintable>"
	}
	if len(b) <= maxExcerpt {
		return string(b)
	}
	cut := maxExcerpt
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "…"
}
