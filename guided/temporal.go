package guided

import (
	"strconv"
	"strings"
	"time"
)

// TimeInterval trims an audio resource. A zero End means "until the end of
// the resource".
type TimeInterval struct {
	Start time.Duration
	End   time.Duration
}

// IsZero reports whether the interval covers the whole resource.
func (i TimeInterval) IsZero() bool {
	return i.Start == 0 && i.End == 0
}

// Duration returns the length of a closed interval, or zero when it is open.
func (i TimeInterval) Duration() time.Duration {
	if i.End <= i.Start {
		return 0
	}
	return i.End - i.Start
}

// ParseTemporalFragment parses a media fragment such as "t=0,5",
// "t=npt:10.5", or "t=,20". The leading "#" is optional and other fragment
// parameters separated by "&" are ignored.
func ParseTemporalFragment(fragment string) (TimeInterval, bool) {
	fragment = strings.TrimPrefix(fragment, "#")
	for _, param := range strings.Split(fragment, "&") {
		value, ok := strings.CutPrefix(param, "t=")
		if !ok {
			continue
		}
		value = strings.TrimPrefix(value, "npt:")

		startStr, endStr, hasEnd := strings.Cut(value, ",")
		var interval TimeInterval

		if startStr != "" {
			start, ok := parseSeconds(startStr)
			if !ok {
				return TimeInterval{}, false
			}
			interval.Start = start
		}
		if hasEnd && endStr != "" {
			end, ok := parseSeconds(endStr)
			if !ok || end < interval.Start {
				return TimeInterval{}, false
			}
			interval.End = end
		}
		if startStr == "" && (!hasEnd || endStr == "") {
			return TimeInterval{}, false
		}
		return interval, true
	}
	return TimeInterval{}, false
}

func parseSeconds(s string) (time.Duration, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return time.Duration(f * float64(time.Second)), true
}

// SplitFragment splits a URL reference into the part before "#" and the
// fragment without the "#".
func SplitFragment(ref string) (base, fragment string) {
	base, fragment, _ = strings.Cut(ref, "#")
	return base, fragment
}
