package core

import (
	"net/http"
	"strings"
)

// WhatsAppSuffix marks a personal chat identifier.
const WhatsAppSuffix = "@c.us"

var (
	errPhoneRequired = NewError(KindValidation, "VALIDATION_ERROR", http.StatusBadRequest,
		"Phone number is required.")
	errPhoneNoDigits = NewError(KindValidation, "VALIDATION_ERROR", http.StatusBadRequest,
		"Phone number must contain digits.")
	errPhoneInvalid = NewError(KindValidation, "VALIDATION_ERROR", http.StatusBadRequest,
		"Phone number is invalid.")
	errCountryCode = NewError(KindValidation, "INVALID_COUNTRY_CODE", http.StatusInternalServerError,
		"DEFAULT_COUNTRY_CODE must contain digits.")
)

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")

// NormalizeWhatsAppID converts free-form phone input into a chat identifier
// of the form "<digits>@c.us".
//
// Numbers written with a leading "+" or "00", or already starting with the
// country code, keep their digits as-is. Local numbers lose leading zeros and
// get countryCode prepended:
//
//	NormalizeWhatsAppID("81 777 444", "961")   // "96181777444@c.us"
//	NormalizeWhatsAppID("+1 (415) 555", "961") // "1415555@c.us"
//	NormalizeWhatsAppID("0081777444", "961")   // "81777444@c.us"
func NormalizeWhatsAppID(raw, countryCode string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", errPhoneRequired
	}

	value = strings.TrimSuffix(value, WhatsAppSuffix)
	value = phoneSeparators.Replace(value)

	international := false
	switch {
	case strings.HasPrefix(value, "+"):
		international = true
		value = value[1:]
	case strings.HasPrefix(value, "00"):
		international = true
		value = value[2:]
	}

	digits := onlyDigits(value)
	if digits == "" {
		return "", errPhoneNoDigits.WithDetails(raw)
	}

	country := onlyDigits(countryCode)
	if country == "" {
		return "", errCountryCode.WithDetails(countryCode)
	}

	if international || strings.HasPrefix(digits, country) {
		return digits + WhatsAppSuffix, nil
	}

	local := strings.TrimLeft(digits, "0")
	if local == "" {
		return "", errPhoneInvalid.WithDetails(raw)
	}
	return country + local + WhatsAppSuffix, nil
}

func onlyDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
