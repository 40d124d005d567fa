package track

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	unitTimeNoise = regexp.MustCompile(`(?i)(\s|,|and)`)
	unitTimeToken = regexp.MustCompile(`(?is)(-?\d+|[a-z]+)`)
)

// ParseUnitTime parses strings such as "1h2m3s", "90" or "2 minutes and 5 seconds"
// into milliseconds. A bare number is seconds. Returns 0 when the input is malformed.
func ParseUnitTime(s string) int64 {
	s = unitTimeNoise.ReplaceAllString(s, "")
	s = strings.TrimSpace(unitTimeToken.ReplaceAllString(s, "$1 "))
	vals := strings.Fields(s)
	if len(vals) == 0 {
		return 0
	}

	var total int64
	for j := 0; j < len(vals); j += 2 {
		num, err := strconv.ParseInt(vals[j], 10, 64)
		if err != nil {
			return 0
		}
		if j+1 < len(vals) {
			unit := strings.ToLower(vals[j+1])
			switch {
			case strings.HasPrefix(unit, "m"):
				num *= 60
			case strings.HasPrefix(unit, "h"):
				num *= 60 * 60
			case strings.HasPrefix(unit, "d"):
				num *= 60 * 60 * 24
			}
		}
		total += num * 1000
	}
	return total
}
