package gateway

import (
	"strconv"
	"strings"
)

// OSIOption is an OSI/OPRA option symbol decomposed into its parts.
type OSIOption struct {
	Underlying string
	Expiration string // YYYYMMDD
	OptionType string // "call" or "put"
	Strike     float64
}

// ParseOSISymbol decodes an OSI option symbol
// (UNDERLYING + YYMMDD + C/P + 8-digit strike in thousandths).
// It returns false for anything that does not parse as an option, which is
// how stock symbols in a mixed position report are told apart.
func ParseOSISymbol(s string) (OSIOption, bool) {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) < 16 { // minimum length for a valid option symbol
		return OSIOption{}, false
	}

	// Look for the first 6-digit sequence (expiration date) with proper validation
	for i := 0; i <= len(trimmed)-15; i++ { // need at least 15 chars after start for YYMMDD + P/C + 8 digits
		if !isSixDigits(trimmed[i : i+6]) {
			continue
		}
		// Check that the 6-digit sequence is not part of a longer numeric run
		if i > 0 && trimmed[i-1] >= '0' && trimmed[i-1] <= '9' {
			continue
		}

		expirationEnd := i + 6
		typeChar := trimmed[expirationEnd]
		if typeChar != 'P' && typeChar != 'C' && typeChar != 'p' && typeChar != 'c' {
			continue
		}

		strikeStart := expirationEnd + 1
		if strikeStart+8 > len(trimmed) || !isEightDigits(trimmed[strikeStart:strikeStart+8]) {
			continue
		}
		// Check that the strike is not part of a longer numeric run
		strikeEnd := strikeStart + 8
		if strikeEnd < len(trimmed) && trimmed[strikeEnd] >= '0' && trimmed[strikeEnd] <= '9' {
			continue
		}

		strikeThousandths, err := strconv.ParseInt(trimmed[strikeStart:strikeEnd], 10, 64)
		if err != nil {
			continue
		}

		optType := "call"
		if typeChar == 'P' || typeChar == 'p' {
			optType = "put"
		}

		return OSIOption{
			Underlying: trimmed[:i],
			Expiration: "20" + trimmed[i:expirationEnd],
			OptionType: optType,
			Strike:     float64(strikeThousandths) / 1000.0,
		}, true
	}

	return OSIOption{}, false
}

// isSixDigits checks if a string consists of exactly 6 digits
func isSixDigits(s string) bool {
	if len(s) != 6 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// isEightDigits checks if a string consists of exactly 8 digits
func isEightDigits(s string) bool {
	if len(s) != 8 {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
