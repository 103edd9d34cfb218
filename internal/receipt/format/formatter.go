package format

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	seqPadRe = regexp.MustCompile(`\{SEQ(\d+)\}`)
)

// DefaultReceiptNumberTemplate renders "2025-0001".
const DefaultReceiptNumberTemplate = "{YYYY}-{SEQ4}"

// FormatReceiptNumber renders a receipt number from a template, the receipt
// year and its sequence. Sequences wider than the pad are printed in full.
func FormatReceiptNumber(template string, year int, seq int64) (string, error) {
	if template == "" {
		return "", fmt.Errorf("receipt number template is empty")
	}
	if year <= 0 {
		return "", fmt.Errorf("invalid receipt year: %d", year)
	}
	if seq <= 0 {
		return "", fmt.Errorf("invalid receipt sequence: %d", seq)
	}

	out := template
	out = strings.ReplaceAll(out, "{YYYY}", fmt.Sprintf("%04d", year))
	out = strings.ReplaceAll(out, "{YY}", fmt.Sprintf("%02d", year%100))
	out = strings.ReplaceAll(out, "{SEQ}", strconv.FormatInt(seq, 10))

	out = seqPadRe.ReplaceAllStringFunc(out, func(m string) string {
		match := seqPadRe.FindStringSubmatch(m)
		if len(match) != 2 {
			return m
		}
		width, err := strconv.Atoi(match[1])
		if err != nil || width <= 0 {
			return m
		}
		return fmt.Sprintf("%0*d", width, seq)
	})

	if strings.Contains(out, "{") || strings.Contains(out, "}") {
		return "", fmt.Errorf("unresolved token in receipt format: %s", out)
	}

	return out, nil
}
