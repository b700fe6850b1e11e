package parser

import "strings"

// Verdict is the classifier's reading of a response body.
type Verdict int

const (
	VerdictData Verdict = iota
	VerdictEmpty
	VerdictBlocked
)

// DefaultBlockMarkers match the CDN challenge and error pages.
var DefaultBlockMarkers = []string{
	"attention required",
	"cf-error-details",
	"cloudflare",
}

// DefaultEmptyMarkers match the upstream "no records found" message.
var DefaultEmptyMarkers = []string{
	"Kayıtlı veri bulunamadı",
	"Kayitli veri bulunamadi",
}

// Classifier maps a response body to data, empty or blocked by
// case-insensitive marker matching. It is immutable after construction.
type Classifier struct {
	block []string
	empty []string
}

// NewClassifier builds a classifier; nil marker sets fall back to the defaults.
func NewClassifier(blockMarkers, emptyMarkers []string) *Classifier {
	if blockMarkers == nil {
		blockMarkers = DefaultBlockMarkers
	}
	if emptyMarkers == nil {
		emptyMarkers = DefaultEmptyMarkers
	}
	return &Classifier{
		block: lowerAll(blockMarkers),
		empty: lowerAll(emptyMarkers),
	}
}

// DefaultClassifier uses the built-in marker sets.
func DefaultClassifier() *Classifier {
	return NewClassifier(nil, nil)
}

// Blocked returns the first block marker found in body.
func (c *Classifier) Blocked(body string) (string, bool) {
	return firstMatch(strings.ToLower(body), c.block)
}

// Classify returns the verdict and, for blocked or empty bodies, the matched marker.
func (c *Classifier) Classify(body string) (Verdict, string) {
	lowered := strings.ToLower(body)
	if marker, ok := firstMatch(lowered, c.block); ok {
		return VerdictBlocked, marker
	}
	if marker, ok := firstMatch(lowered, c.empty); ok {
		return VerdictEmpty, marker
	}
	return VerdictData, ""
}

func firstMatch(lowered string, markers []string) (string, bool) {
	if lowered == "" {
		return "", false
	}
	for _, m := range markers {
		if strings.Contains(lowered, m) {
			return m, true
		}
	}
	return "", false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
