package chatlog

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// controlReplacer drops the invisible BOM, bidi, and isolate control
// characters that phone exports scatter through right-to-left or
// emoji-adjacent text. They would otherwise break the header regex.
var controlReplacer = strings.NewReplacer(
	"\uFEFF", "", // Byte Order Mark
	"\u200E", "", // Left-to-Right Mark
	"\u200F", "", // Right-to-Left Mark
	"\u061C", "", // Arabic Letter Mark
	"\u2066", "", // Left-to-Right Isolate
	"\u2067", "", // Right-to-Left Isolate
	"\u2068", "", // First Strong Isolate
	"\u2069", "", // Pop Directional Isolate
	"\u202A", "", // Left-to-Right Embedding
	"\u202B", "", // Right-to-Left Embedding
	"\u202C", "", // Pop Directional Formatting
	"\u202D", "", // Left-to-Right Override
	"\u202E", "", // Right-to-Left Override
)

// spaceQuoteReplacer maps the space and quote variants NFKC leaves alone
// onto their plain ASCII equivalents.
var spaceQuoteReplacer = strings.NewReplacer(
	"\u202F", " ", // Narrow No-Break Space
	"\u00A0", " ", // No-Break Space
	"\u2009", " ", // Thin Space
	"\u2019", "'", // Right Single Quotation Mark
	"\u201C", "\"", // Left Double Quotation Mark
	"\u201D", "\"", // Right Double Quotation Mark
)

// Normalize strips invisible directional and format control characters,
// applies Unicode NFKC normalization, and folds typographic space and quote
// variants to ASCII. It is a pure, total function and idempotent: normalizing
// already-normalized text is a no-op.
func Normalize(s string) string {
	s = controlReplacer.Replace(s)
	s = norm.NFKC.String(s)
	return spaceQuoteReplacer.Replace(s)
}
