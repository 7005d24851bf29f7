package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// IdentifierKind distinguishes the two tax-id formats the system accepts.
type IdentifierKind string

const (
	KindIndividual IdentifierKind = "individual"
	KindCompany    IdentifierKind = "company"
)

// ErrInvalidIdentifier is returned for inputs that are not an 11-digit
// individual id or a 14-digit company id.
var ErrInvalidIdentifier = eris.New("model: invalid identifier")

// NormalizeIdentifier strips the usual punctuation (dots, dashes, slashes)
// from a tax id, leaving digits only.
func NormalizeIdentifier(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// DetectKind infers the identifier kind from its normalized length.
func DetectKind(identifier string) (IdentifierKind, error) {
	switch len(NormalizeIdentifier(identifier)) {
	case 11:
		return KindIndividual, nil
	case 14:
		return KindCompany, nil
	default:
		return "", eris.Wrapf(ErrInvalidIdentifier, "length %d", len(identifier))
	}
}

// ValidateIdentifier checks the identifier's check digits. Used by the search
// validation endpoint; the fulfillment path trusts ids that were already
// validated at purchase time.
func ValidateIdentifier(identifier string) error {
	id := NormalizeIdentifier(identifier)
	switch len(id) {
	case 11:
		if !validIndividual(id) {
			return eris.Wrap(ErrInvalidIdentifier, "individual check digits")
		}
	case 14:
		if !validCompany(id) {
			return eris.Wrap(ErrInvalidIdentifier, "company check digits")
		}
	default:
		return eris.Wrapf(ErrInvalidIdentifier, "length %d", len(id))
	}
	return nil
}

// MaskIdentifier redacts the middle digits of an id for use in notifications
// and logs. "52998224725" becomes "529.***.***-25"; company ids keep the
// first four and last two digits.
func MaskIdentifier(identifier string) string {
	id := NormalizeIdentifier(identifier)
	switch len(id) {
	case 11:
		return id[:3] + ".***.***-" + id[9:]
	case 14:
		return id[:4] + "****/****-" + id[12:]
	default:
		if len(id) <= 4 {
			return "****"
		}
		return id[:2] + strings.Repeat("*", len(id)-4) + id[len(id)-2:]
	}
}

func validIndividual(id string) bool {
	// Reject repeated-digit sequences, which satisfy the checksum but are
	// not issued.
	if allSame(id) {
		return false
	}
	d1 := checkDigit(id[:9], 10)
	d2 := checkDigit(id[:10], 11)
	return int(id[9]-'0') == d1 && int(id[10]-'0') == d2
}

func validCompany(id string) bool {
	if allSame(id) {
		return false
	}
	d1 := companyCheckDigit(id[:12])
	d2 := companyCheckDigit(id[:13])
	return int(id[12]-'0') == d1 && int(id[13]-'0') == d2
}

// checkDigit computes an individual-id check digit using descending weights
// starting at startWeight.
func checkDigit(digits string, startWeight int) int {
	sum := 0
	for i, c := range digits {
		sum += int(c-'0') * (startWeight - i)
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

// companyCheckDigit computes a company-id check digit using the cyclic
// 2..9 weight sequence applied right to left.
func companyCheckDigit(digits string) int {
	weight := 2
	sum := 0
	for i := len(digits) - 1; i >= 0; i-- {
		sum += int(digits[i]-'0') * weight
		weight++
		if weight > 9 {
			weight = 2
		}
	}
	rest := sum % 11
	if rest < 2 {
		return 0
	}
	return 11 - rest
}

func allSame(id string) bool {
	for i := 1; i < len(id); i++ {
		if id[i] != id[0] {
			return false
		}
	}
	return true
}
