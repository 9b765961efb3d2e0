package extract

import (
	"regexp"
	"strconv"
	"strings"
)

// The multiplier suffix must sit directly on the number: "1.2K likes"
// scales, "2 comments" does not.
var countRe = regexp.MustCompile(`(\d+(?:\.\d+)?)([KkMm]?)`)

// ParseCount converts a display count like "5 likes", "1.2K comments" or
// "3M" into an integer. Unparseable input yields 0.
func ParseCount(text string) int {
	text = strings.ReplaceAll(text, ",", "")

	m := countRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}

	n, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0
	}
	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1_000
	case "m":
		n *= 1_000_000
	}
	return int(n)
}
