package gateshead

import "strings"

// UnknownColour is used for bin types without a known colour.
const UnknownColour = "unknown"

const onlySuffix = " only"

// Link text sometimes carries only the first word of a category.
var shortBinTypes = map[string]string{
	"household": "Household Waste",
	"garden":    "Garden Waste",
}

var binColours = map[string]string{
	"Household Waste":                     "green",
	"Garden Waste":                        "garden",
	"Recycling - Glass, plastic and cans": "dark blue",
	"Recycling - Paper and cardboard":     "light blue with red top",
}

// CanonicalBinType normalizes link text from the schedule table into a
// category name. Unrecognized text is returned with whitespace collapsed.
func CanonicalBinType(raw string) string {
	text := cleanText(raw)

	if n := len(text) - len(onlySuffix); n >= 0 && strings.EqualFold(text[n:], onlySuffix) {
		text = strings.TrimSpace(text[:n])
	}

	if full, ok := shortBinTypes[strings.ToLower(text)]; ok {
		return full
	}

	return text
}

// BinColour returns the display colour for a canonical bin type.
func BinColour(binType string) string {
	if colour, ok := binColours[binType]; ok {
		return colour
	}
	return UnknownColour
}

// cleanText collapses whitespace and replaces invalid UTF-8 from the page.
func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.ToValidUTF8(s, "\uFFFD")), " ")
}
