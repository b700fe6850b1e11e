package parser

import (
	"strconv"
	"strings"
)

// ParsePrice converts a Turkish-formatted amount ("1.234,56") to a number.
// Blank or unparseable text yields nil.
func ParsePrice(text string) *float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	text = strings.ReplaceAll(text, ".", "")
	text = strings.ReplaceAll(text, ",", ".")
	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return nil
	}
	return &value
}

// FormatPrice renders a value in the same convention ParsePrice reads.
func FormatPrice(value float64) string {
	raw := strconv.FormatFloat(value, 'f', -1, 64)
	sign := ""
	if strings.HasPrefix(raw, "-") {
		sign, raw = "-", raw[1:]
	}
	whole, frac, hasFrac := strings.Cut(raw, ".")

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte(',')
		b.WriteString(frac)
	}
	return b.String()
}
