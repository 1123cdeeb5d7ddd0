// Package accesslevel defines the data-access levels shared by the studio
// UI and the protected SPARQL gateway. A level names the most sensitive
// class of query the deployment currently answers.
package accesslevel

import (
	"strconv"
	"strings"
)

// Levels lists the access levels in ascending order of sensitivity.
var Levels = []string{
	"L0 - Boolean Queries",
	"L1 - Simple COUNT Aggregations",
	"L2 - Full Aggregations (AVG, etc.)",
	"L3 - Grouped Data",
	"L4 - Limited Access to Non-Sensitive Data",
	"L5 - Access to Individual Patient Data",
	"L6 - Full Access to Data",
}

// Default is the level assumed before an operator picks one.
func Default() string {
	return Levels[0]
}

// Valid reports whether the value is a known level.
func Valid(value string) bool {
	for _, level := range Levels {
		if level == value {
			return true
		}
	}
	return false
}

// Numeric extracts the ordinal from a level string ("L3 - ..." -> 3).
// Unknown or empty values rank as 0, the most restrictive setting.
func Numeric(value string) int {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "L") {
		return 0
	}
	rest := value[1:]
	if cut := strings.IndexFunc(rest, func(r rune) bool { return r < '0' || r > '9' }); cut >= 0 {
		rest = rest[:cut]
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
