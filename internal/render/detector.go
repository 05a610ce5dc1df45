package render

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/paperchase/paperchase/internal/retrieval"
)

// ChallengeDetector spots anti-automation interstitials served in place of
// the search payload. A valid response is JSON; a challenge is an HTML
// verification page, so the detector combines cheap byte signatures with
// selector probes over the markup.
type ChallengeDetector struct {
	signatures [][]byte
	selectors  []string
}

// DefaultSignatures are lower-case substrings that identify the common
// bot-protection vendors' challenge pages.
func DefaultSignatures() []string {
	return []string{
		"cf-browser-verification",
		"cf-turnstile",
		"attention required! | cloudflare",
		"geo.captcha-delivery.com",
		"px-captcha",
		"verify you are a human",
		"pardon our interruption",
	}
}

// DefaultSelectors are CSS selectors present on challenge interstitials.
func DefaultSelectors() []string {
	return []string{
		"#challenge-form",
		"#px-captcha",
		"iframe[src*='captcha']",
		"form[action*='captcha']",
	}
}

// NewChallengeDetector builds a detector; empty slices fall back to the
// defaults.
func NewChallengeDetector(signatures, selectors []string) *ChallengeDetector {
	if len(signatures) == 0 {
		signatures = DefaultSignatures()
	}
	if len(selectors) == 0 {
		selectors = DefaultSelectors()
	}
	lowered := make([][]byte, 0, len(signatures))
	for _, sig := range signatures {
		sig = strings.TrimSpace(strings.ToLower(sig))
		if sig == "" {
			continue
		}
		lowered = append(lowered, []byte(sig))
	}
	return &ChallengeDetector{
		signatures: lowered,
		selectors:  selectors,
	}
}

// IsChallenge reports whether the document is a verification interstitial
// rather than a result payload.
func (d *ChallengeDetector) IsChallenge(doc retrieval.Document) bool {
	if d == nil || len(doc.HTML) == 0 {
		return false
	}
	if looksLikeJSON(doc.Text) {
		return false
	}
	lowerBody := bytes.ToLower(doc.HTML)
	for _, sig := range d.signatures {
		if bytes.Contains(lowerBody, sig) {
			return true
		}
	}
	return d.matchesSelector(doc.HTML)
}

func (d *ChallengeDetector) matchesSelector(body []byte) bool {
	if len(d.selectors) == 0 {
		return false
	}
	parsed, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	for _, sel := range d.selectors {
		if sel == "" {
			continue
		}
		if parsed.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func looksLikeJSON(text []byte) bool {
	trimmed := bytes.TrimSpace(text)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
