package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer strips markup from patient- and doctor-supplied free text.
type TextSanitizer interface {
	Sanitize(s string) string
}

type strictSanitizer struct {
	policy *bluemonday.Policy
}

func NewTextSanitizer() TextSanitizer {
	return &strictSanitizer{policy: bluemonday.StrictPolicy()}
}

// maxSanitizePasses bounds the decode/sanitize loop for nested encodings.
const maxSanitizePasses = 4

// Sanitize removes every tag and returns plain, trimmed text. Entities are
// decoded before the policy runs so encoded markup is stripped like raw
// markup. The policy's own escapes are decoded once at the end since the
// result is stored as text, not HTML.
func (s *strictSanitizer) Sanitize(in string) string {
	if in == "" {
		return ""
	}

	out := in
	for i := 0; i < maxSanitizePasses; i++ {
		next := s.policy.Sanitize(html.UnescapeString(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(html.UnescapeString(out))
}
