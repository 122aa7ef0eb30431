package extract

import (
	"regexp"
	"strings"

	"github.com/ironsheep/chatscan/internal/faults"
)

// PatternVersion identifies the DefaultFields pattern set. It changes
// whenever a default pattern or normalizer changes, so cached results keyed
// on it are not reused across versions.
const PatternVersion = "2"

// Default field names.
const (
	FieldPhones  = "phones"
	FieldEmails  = "emails"
	FieldURLs    = "urls"
	FieldAmounts = "amounts"
)

// Normalizer rewrites a raw match into its canonical form. An empty result
// drops the match.
type Normalizer func(match string) string

type field struct {
	name      string
	pattern   *regexp.Regexp
	normalize Normalizer
}

// FieldSet is an ordered registry of named field patterns. Register fields
// before sharing the set; Extract is safe for concurrent use afterwards.
type FieldSet struct {
	fields []field
}

// NewFieldSet returns an empty set.
func NewFieldSet() *FieldSet {
	return &FieldSet{}
}

// Register adds a field. pattern uses RE2 syntax; normalize may be nil.
func (s *FieldSet) Register(name, pattern string, normalize Normalizer) error {
	if strings.TrimSpace(name) == "" {
		return faults.InvalidConfiguration("field name must not be empty")
	}
	for _, f := range s.fields {
		if f.name == name {
			return faults.InvalidConfiguration("field %q already registered", name)
		}
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return faults.InvalidConfiguration("field %q: invalid pattern: %v", name, err)
	}
	s.fields = append(s.fields, field{name: name, pattern: re, normalize: normalize})
	return nil
}

// Names returns the registered field names in registration order.
func (s *FieldSet) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.name
	}
	return names
}

// Extract matches every field against text. Every registered name is present
// in the result; matches keep first-seen order with duplicates (after
// normalization) removed.
func (s *FieldSet) Extract(text string) map[string][]string {
	out := make(map[string][]string, len(s.fields))
	for _, f := range s.fields {
		values := []string{}
		seen := make(map[string]bool)
		for _, m := range f.pattern.FindAllString(text, -1) {
			if f.normalize != nil {
				m = f.normalize(m)
			}
			if m == "" || seen[m] {
				continue
			}
			seen[m] = true
			values = append(values, m)
		}
		out[f.name] = values
	}
	return out
}

// DefaultFields returns a new set holding the PatternVersion patterns.
func DefaultFields() *FieldSet {
	s := NewFieldSet()
	mustRegister(s, FieldPhones, `(?:\+|\b)\d(?:[ \-]?\d){6,14}\b`, normalizePhone)
	mustRegister(s, FieldEmails, `[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`, strings.ToLower)
	mustRegister(s, FieldURLs, `(?i)\b(?:https?://|www\.)[^\s<>"']+`, trimURL)
	mustRegister(s, FieldAmounts, `(?i)(?:\b(?:rs\.?|pkr|inr|usd)|\$|₨)\s?\d[\d,]*(?:\.\d+)?`, collapseSpaces)
	return s
}

func mustRegister(s *FieldSet, name, pattern string, normalize Normalizer) {
	if err := s.Register(name, pattern, normalize); err != nil {
		panic(err)
	}
}

// normalizePhone keeps a leading plus and the digits.
func normalizePhone(m string) string {
	var b strings.Builder
	for i, r := range m {
		if r == '+' && i == 0 || r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimURL(m string) string {
	return strings.TrimRight(m, ".,;:!?)]}")
}

func collapseSpaces(m string) string {
	return strings.Join(strings.Fields(m), " ")
}
