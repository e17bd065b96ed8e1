package roster

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Markers are the localized phrases the extractor keys on.
type Markers struct {
	ValidityStart string   // phrase opening the on-call period sentence
	ValidityEnd   string   // phrase closing it, included in the result
	Footer        []string // text only present in footer cells (e.g. the site e-mail)
}

// DefaultMarkers matches the Spanish roster page.
func DefaultMarkers() Markers {
	return Markers{
		ValidityStart: "turno comienza",
		ValidityEnd:   "siguiente",
		Footer:        []string{"@colegiofarmaceutico"},
	}
}

// phoneLabel matches "Tel.", "Tel.:" and "(02477) Tel.:" style labels.
var phoneLabel = regexp.MustCompile(`(?i)(?:\(\s*(\d[\d\s-]*?)\s*\)\s*)?\btel\.\s*:?`)

// maxValiditySpan bounds the non-greedy validity match.
const maxValiditySpan = 600

// Extractor turns decoded roster HTML into a ScheduleSnapshot. It holds no
// per-call state and is safe for concurrent use.
type Extractor struct {
	markers    Markers
	validityRe *regexp.Regexp
	policy     *bluemonday.Policy
}

// NewExtractor compiles the marker patterns.
func NewExtractor(m Markers) (*Extractor, error) {
	m.ValidityStart = strings.TrimSpace(m.ValidityStart)
	m.ValidityEnd = strings.TrimSpace(m.ValidityEnd)
	if m.ValidityStart == "" || m.ValidityEnd == "" {
		return nil, fmt.Errorf("validity markers must not be empty")
	}

	pattern := fmt.Sprintf(`(?is)%s.{0,%d}?%s`,
		markerPattern(m.ValidityStart), maxValiditySpan, markerPattern(m.ValidityEnd))
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile validity pattern: %w", err)
	}

	footer := make([]string, 0, len(m.Footer))
	for _, f := range m.Footer {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			footer = append(footer, f)
		}
	}
	m.Footer = footer

	return &Extractor{markers: m, validityRe: re, policy: rosterPolicy()}, nil
}

// markerPattern quotes a phrase and lets any whitespace run stand for its spaces.
func markerPattern(phrase string) string {
	parts := strings.Fields(phrase)
	for i, p := range parts {
		parts[i] = regexp.QuoteMeta(p)
	}
	return strings.Join(parts, `\s+`)
}

// rosterPolicy keeps table structure and inline text; script and style bodies are dropped.
func rosterPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"table", "thead", "tbody", "tfoot", "tr", "td", "th", "caption",
		"p", "br", "div", "span", "font", "center", "b", "strong", "i", "em", "u",
	)
	return p
}

// Extract parses the page. Finding nothing is not an error.
func (e *Extractor) Extract(html string) (ScheduleSnapshot, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(e.policy.Sanitize(html)))
	if err != nil {
		return ScheduleSnapshot{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	doc.Find("br").ReplaceWithHtml(" ")

	snap := ScheduleSnapshot{Pharmacies: []PharmacyEntry{}}
	var rows []PharmacyEntry

	doc.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
		// Outer cells of nested tables repeat their children's text.
		if cell.Find("td, th").Length() > 0 {
			return
		}
		text := normalizeSpace(cell.Text())
		if text == "" {
			return
		}

		if e.isValidityCell(text) {
			if snap.ValidityText == "" {
				snap.ValidityText = e.validityRe.FindString(text)
			}
			return
		}
		if !e.isPharmacyCell(text) {
			return
		}
		if entry, ok := parsePharmacyRow(text); ok {
			rows = append(rows, entry)
		}
	})

	snap.Pharmacies = dedupePharmacies(rows)
	return snap, nil
}

func (e *Extractor) isValidityCell(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(e.markers.ValidityStart))
}

func (e *Extractor) isPharmacyCell(text string) bool {
	if !phoneLabel.MatchString(text) {
		return false
	}
	lower := strings.ToLower(text)
	for _, f := range e.markers.Footer {
		if strings.Contains(lower, f) {
			return false
		}
	}
	return true
}

// parsePharmacyRow splits a candidate cell on its first phone label. A cell
// with nothing before the label (a bare "Tel. 123" next to separate name and
// address cells) yields no entry.
func parsePharmacyRow(text string) (PharmacyEntry, bool) {
	loc := phoneLabel.FindStringSubmatchIndex(text)
	if loc == nil {
		return PharmacyEntry{}, false
	}

	nameAndAddress := normalizeSpace(text[:loc[0]])
	if nameAndAddress == "" {
		return PharmacyEntry{}, false
	}

	tail := normalizeSpace(text[loc[1]:])
	phone := "Tel. "
	if loc[2] >= 0 {
		phone += "(" + normalizeSpace(text[loc[2]:loc[3]]) + ")"
		if tail != "" {
			phone += " "
		}
	}
	phone += tail

	name, address := SplitNameAddress(nameAndAddress)
	return PharmacyEntry{Name: name, Address: address, Phone: phone}, true
}

// SplitNameAddress segments "FARMACIA CENTRAL Av. Mitre 123" into name and
// address. Leading tokens that are fully upper case and longer than two
// characters form the name; everything from the first other token on is the
// address. With no such leading token the first token alone is the name.
func SplitNameAddress(s string) (name, address string) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return "", ""
	}

	n := 0
	for n < len(tokens) && isNameToken(tokens[n]) {
		n++
	}
	if n == 0 {
		n = 1
	}
	return strings.Join(tokens[:n], " "), strings.Join(tokens[n:], " ")
}

func isNameToken(tok string) bool {
	if utf8.RuneCountInString(tok) <= 2 {
		return false
	}
	hasCased := false
	for _, r := range tok {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasCased = true
		}
	}
	return hasCased
}

type pharmacyKey struct {
	name, address string
}

// dedupePharmacies keeps the first entry for each (name, address) in input order.
func dedupePharmacies(rows []PharmacyEntry) []PharmacyEntry {
	out := make([]PharmacyEntry, 0, len(rows))
	seen := make(map[pharmacyKey]struct{}, len(rows))
	for _, r := range rows {
		k := pharmacyKey{r.Name, r.Address}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}
