package acquisition

import (
	"regexp"
	"strconv"
)

var numberPattern = regexp.MustCompile(`[\d.]+`)

// ParseValue extracts the first run of digits and dots from line, e.g.
// "HI 301.5 ft.lb" yields 301.5. A run that is not a valid number, such as
// "1.2.3" or ".", makes the whole line unparseable. Signs are not matched.
func ParseValue(line string) (float64, bool) {
	match := numberPattern.FindString(line)
	if match == "" {
		return 0, false
	}

	v, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, false
	}

	return v, true
}
