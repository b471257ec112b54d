package model

import (
	"math/big"
	"regexp"
	"strings"
)

// Generic identifier validation. Invalid VAT/IBAN values found in source
// documents are dropped with a warning instead of being propagated to the
// catalog matcher.

var vatRe = regexp.MustCompile(`^[A-Z]{2}[0-9A-Z+*. ]{2,13}$`)

// CleanVAT normalizes a VAT number (strip spaces, uppercase)
func CleanVAT(vat string) string {
	return strings.ToUpper(strings.ReplaceAll(vat, " ", ""))
}

// IsPlausibleVAT performs a structural check on a VAT number: ISO country
// prefix followed by 2-13 allowed characters
func IsPlausibleVAT(vat string) bool {
	return vatRe.MatchString(CleanVAT(vat))
}

// IsValidIBAN verifies the ISO 13616 mod-97 checksum
func IsValidIBAN(iban string) bool {
	iban = strings.ToUpper(strings.ReplaceAll(iban, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return false
	}
	// Move the country code and check digits to the end, then expand
	// letters to two-digit numbers (A=10 .. Z=35)
	rearranged := iban[4:] + iban[:4]
	var sb strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			sb.WriteString(bigIntDigits(r))
		default:
			return false
		}
	}
	n, ok := new(big.Int).SetString(sb.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}

func bigIntDigits(r rune) string {
	v := int(r-'A') + 10
	return string(rune('0'+v/10)) + string(rune('0'+v%10))
}
