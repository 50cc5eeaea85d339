package timer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	minutesRe  = regexp.MustCompile(`(\d+)\s*m`)
	secondsRe  = regexp.MustCompile(`(\d+)\s*s`)
	trailingRe = regexp.MustCompile(`(\d+)$`)
)

// ParseDuration reads an exercise target such as "2m", "30s", "1m 15s" or "45".
// Unparseable input yields zero.
func ParseDuration(s string) time.Duration {
	s = strings.ToLower(strings.TrimSpace(s))

	var total int
	var matched bool
	if m := minutesRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n * 60
		matched = true
	}
	if m := secondsRe.FindStringSubmatch(s); m != nil {
		n, _ := strconv.Atoi(m[1])
		total += n
		matched = true
	}
	if !matched {
		if m := trailingRe.FindStringSubmatch(s); m != nil {
			total, _ = strconv.Atoi(m[1])
		}
	}
	return time.Duration(total) * time.Second
}
