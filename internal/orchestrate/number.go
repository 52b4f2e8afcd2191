package orchestrate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Process numbers follow "PROC-" + digits, upper-cased. Uniqueness is scoped
// per office; the numeric suffix is the increment unit for both "next
// available" scans and collision retries.
const numberPrefix = "PROC"

var numberPattern = regexp.MustCompile(`^PROC-(\d+)$`)

// NormalizeNumber upper-cases and validates a client-supplied process number.
func NormalizeNumber(raw string) (string, bool) {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if !numberPattern.MatchString(n) {
		return "", false
	}
	return n, true
}

// numberSuffix extracts the numeric suffix; returns -1 for malformed input.
func numberSuffix(n string) int {
	m := numberPattern.FindStringSubmatch(n)
	if m == nil {
		return -1
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return -1
	}
	return v
}

// nextNumber deterministically increments the numeric suffix.
func nextNumber(n string) string {
	return formatNumber(numberSuffix(n) + 1)
}

// firstAvailable returns the number after the highest suffix present in
// existing, or the first number in sequence when none exist.
func firstAvailable(existing []string) string {
	highest := 0
	for _, n := range existing {
		if s := numberSuffix(strings.ToUpper(n)); s > highest {
			highest = s
		}
	}
	return formatNumber(highest + 1)
}

func formatNumber(suffix int) string {
	return fmt.Sprintf("%s-%03d", numberPrefix, suffix)
}
