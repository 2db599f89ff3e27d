// Package emailaddr validates email addresses syntactically and corrects
// common domain misspellings before delivery. Nothing here performs I/O.
package emailaddr

import (
	"regexp"
	"strings"
)

var formatRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// domainFixes maps known-misspelled domains to the intended domain. A key
// matches the whole domain or a dot-bounded suffix of it, so subdomains are
// corrected too. No value may end in a key, which keeps correction idempotent.
var domainFixes = map[string]string{
	"gmai.com":    "gmail.com",
	"gmail.co":    "gmail.com",
	"gamil.com":   "gmail.com",
	"gmial.com":   "gmail.com",
	"gmail.cm":    "gmail.com",
	"gmail.om":    "gmail.com",
	"gmal.com":    "gmail.com",
	"gmail.con":   "gmail.com",
	"yaho.com":    "yahoo.com",
	"yahoo.co":    "yahoo.com",
	"yahooo.com":  "yahoo.com",
	"yhoo.com":    "yahoo.com",
	"hotmal.com":  "hotmail.com",
	"hotmai.com":  "hotmail.com",
	"hotmial.com": "hotmail.com",
	"homtail.com": "hotmail.com",
	"hotmail.co":  "hotmail.com",
	"outlook.co":  "outlook.com",
	"outloo.com":  "outlook.com",
	"outlok.com":  "outlook.com",
}

// builtinOverrides are full-address fixes shipped with the package. Configured
// overrides are merged over them.
var builtinOverrides = map[string]string{
	"shrishtipradeep6@gmai.com": "shrishtipradeep6@gmail.com",
}

// IsValidFormat reports whether address has the local@domain.tld shape.
// Surrounding whitespace is ignored.
func IsValidFormat(address string) bool {
	return formatRe.MatchString(strings.TrimSpace(address))
}

// Corrector rewrites likely typos. The zero value only applies the built-in
// domain table.
type Corrector struct {
	overrides map[string]string
}

// NewCorrector returns a Corrector that rewrites the built-in full addresses
// plus the given ones, which win on conflict. Keys and values are normalised;
// an override whose target is itself overridden is dropped so that Correct
// stays idempotent.
func NewCorrector(overrides map[string]string) *Corrector {
	norm := make(map[string]string, len(builtinOverrides)+len(overrides))
	add := func(table map[string]string) {
		for from, to := range table {
			from = fixDomain(normalize(from))
			to = fixDomain(normalize(to))
			if from == "" || to == "" || from == to {
				continue
			}
			norm[from] = to
		}
	}
	add(builtinOverrides)
	add(overrides)
	for from, to := range norm {
		if _, chained := norm[to]; chained {
			delete(norm, from)
		}
	}
	return &Corrector{overrides: norm}
}

// Correct trims and lower-cases address, then applies at most one rule:
// a full-address override, or else a domain substitution. Override keys are
// stored with their domain already fixed, so a misspelled variant of an
// overridden address resolves to the same target.
func (c *Corrector) Correct(address string) string {
	if address == "" {
		return address
	}
	corrected := fixDomain(normalize(address))
	if c != nil {
		if to, ok := c.overrides[corrected]; ok {
			return to
		}
	}
	return corrected
}

var defaultCorrector = NewCorrector(nil)

// SetOverrides replaces the configured full-address overrides used by
// CorrectTypos. The built-in table stays in effect. Call it once during
// startup.
func SetOverrides(overrides map[string]string) {
	defaultCorrector = NewCorrector(overrides)
}

// Default returns the Corrector used by the package-level functions.
func Default() *Corrector { return defaultCorrector }

// CorrectTypos applies the default Corrector.
func CorrectTypos(address string) string {
	return defaultCorrector.Correct(address)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func fixDomain(address string) string {
	at := strings.LastIndexByte(address, '@')
	if at < 0 {
		return address
	}
	domain := address[at+1:]
	for i := 0; ; {
		if fixed, ok := domainFixes[domain[i:]]; ok {
			return address[:at+1] + domain[:i] + fixed
		}
		dot := strings.IndexByte(domain[i:], '.')
		if dot < 0 {
			return address
		}
		i += dot + 1
	}
}

// ErrorType values reported by Analyze.
const (
	ErrorTypeEmpty  = "empty"
	ErrorTypeFormat = "format"
)

// Analysis is the result of Analyze.
type Analysis struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected,omitempty"`
	IsValid   bool   `json:"is_valid"`
	WasFixed  bool   `json:"was_fixed"`
	ErrorType string `json:"error_type,omitempty"`
}

// Analyze corrects address and reports whether the result is deliverable.
func (c *Corrector) Analyze(address string) Analysis {
	if strings.TrimSpace(address) == "" {
		return Analysis{Original: address, ErrorType: ErrorTypeEmpty}
	}
	corrected := c.Correct(address)
	a := Analysis{
		Original: address,
		WasFixed: corrected != address,
		IsValid:  IsValidFormat(corrected),
	}
	if a.WasFixed {
		a.Corrected = corrected
	}
	if !a.IsValid {
		a.ErrorType = ErrorTypeFormat
	}
	return a
}

// Analyze uses the default Corrector.
func Analyze(address string) Analysis {
	return defaultCorrector.Analyze(address)
}
