// Package numbering derives the next human-readable outpatient and
// registration numbers from the numbers already issued.
//
// The derivation reads the current maximum and adds one. Nothing reserves
// the result, so two desks submitting at the same time can receive the same
// number; callers must treat the output as a suggestion, not an allocation.
package numbering

import (
	"fmt"
	"regexp"
	"strconv"
)

const (
	Width              = 6
	RegistrationPrefix = "REG"

	InitialOutpatientNo   = "000001"
	InitialRegistrationNo = RegistrationPrefix + InitialOutpatientNo
)

var (
	outpatientPattern   = regexp.MustCompile(`^\d+$`)
	registrationPattern = regexp.MustCompile(`^` + RegistrationPrefix + `(\d+)$`)
)

// NextOutpatientNo returns max(existing)+1, zero-padded to Width digits.
// Values that are not purely numeric are ignored.
func NextOutpatientNo(existing []string) string {
	highest := maxOf(existing, func(v string) (string, bool) {
		return v, outpatientPattern.MatchString(v)
	})
	return pad(highest + 1)
}

// NextRegistrationNo returns "REG" followed by the highest numeric suffix
// plus one, zero-padded to Width digits. Malformed values are ignored.
func NextRegistrationNo(existing []string) string {
	highest := maxOf(existing, func(v string) (string, bool) {
		m := registrationPattern.FindStringSubmatch(v)
		if m == nil {
			return "", false
		}
		return m[1], true
	})
	return RegistrationPrefix + pad(highest+1)
}

func maxOf(values []string, digits func(string) (string, bool)) uint64 {
	var highest uint64
	for _, v := range values {
		d, ok := digits(v)
		if !ok {
			continue
		}
		n, err := strconv.ParseUint(d, 10, 63)
		if err != nil {
			// overflowing values are as unusable as malformed ones
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

func pad(n uint64) string {
	return fmt.Sprintf("%0*d", Width, n)
}
