package extract

import (
	"regexp"
	"strings"
)

// Courier codes used throughout the system. The router and config use the
// same literals.
const (
	CourierFedEx = "fedex"
	CourierUPS   = "ups"
	CourierUSPS  = "usps"
)

// Confirmed is a validated tracking number with its best-match courier.
type Confirmed struct {
	TrackingNumber string
	Courier        string
	Service        string
	TrackingURL    string
}

var (
	uspsIntlRe    = regexp.MustCompile(`^[A-Z]{2}\d{9}US$`)
	allDigitsRe   = regexp.MustCompile(`^\d+$`)
	upsBodyRe     = regexp.MustCompile(`^1Z[A-Z0-9]{16}$`)
	whitespaceRe  = regexp.MustCompile(`\s+`)
)

// Confirm validates a single candidate against the known courier formats.
// Whitespace is stripped before validation, so grouped formats like
// "9400 1000 ..." validate as one number.
func Confirm(candidate string) (Confirmed, bool) {
	clean := strings.ToUpper(whitespaceRe.ReplaceAllString(candidate, ""))

	if upsBodyRe.MatchString(clean) && upsCheckDigitOK(clean) {
		return Confirmed{
			TrackingNumber: clean,
			Courier:        CourierUPS,
			Service:        "UPS",
			TrackingURL:    "https://www.ups.com/track?loc=en_US&tracknum=" + clean,
		}, true
	}

	if uspsIntlRe.MatchString(clean) {
		return Confirmed{
			TrackingNumber: clean,
			Courier:        CourierUSPS,
			Service:        "USPS International",
			TrackingURL:    "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + clean,
		}, true
	}

	if allDigitsRe.MatchString(clean) {
		if len(clean) >= 20 && len(clean) <= 22 && clean[0] == '9' && uspsCheckDigitOK(clean) {
			return Confirmed{
				TrackingNumber: clean,
				Courier:        CourierUSPS,
				Service:        "USPS Tracking",
				TrackingURL:    "https://tools.usps.com/go/TrackConfirmAction?tLabels=" + clean,
			}, true
		}
		if len(clean) == 12 || len(clean) == 15 {
			service := "FedEx Express"
			if len(clean) == 15 {
				service = "FedEx Ground"
			}
			return Confirmed{
				TrackingNumber: clean,
				Courier:        CourierFedEx,
				Service:        service,
				TrackingURL:    "https://www.fedex.com/fedextrack/?trknbr=" + clean,
			}, true
		}
	}

	return Confirmed{}, false
}

// ExtractTrackingNumbers runs the full extract→validate pipeline over text,
// de-duplicating by tracking number in first-seen order.
func ExtractTrackingNumbers(text string) []Confirmed {
	var out []Confirmed
	seen := make(map[string]struct{})
	for _, cand := range Candidates(text) {
		conf, ok := Confirm(cand)
		if !ok {
			continue
		}
		if _, dup := seen[conf.TrackingNumber]; dup {
			continue
		}
		seen[conf.TrackingNumber] = struct{}{}
		out = append(out, conf)
	}
	return out
}

// upsCheckDigitOK verifies the UPS check digit: the 16 characters after
// "1Z" minus the last one are weighted 1/2 alternating, letters mapped
// (c-63) mod 10, and the total rounded up to the next multiple of ten.
func upsCheckDigitOK(num string) bool {
	body := num[2 : len(num)-1]
	check := num[len(num)-1]
	if check < '0' || check > '9' {
		return false
	}

	sum := 0
	for i := 0; i < len(body); i++ {
		c := body[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c >= 'A' && c <= 'Z':
			v = int(c-63) % 10
		default:
			return false
		}
		if (i+1)%2 == 0 {
			v *= 2
		}
		sum += v
	}

	return (10-sum%10)%10 == int(check-'0')
}

// uspsCheckDigitOK verifies the USPS (GS1 mod-10) check digit: digits are
// weighted 3/1 alternating from the right, starting with 3.
func uspsCheckDigitOK(num string) bool {
	body := num[:len(num)-1]
	check := int(num[len(num)-1] - '0')

	sum := 0
	weight := 3
	for i := len(body) - 1; i >= 0; i-- {
		sum += weight * int(body[i]-'0')
		if weight == 3 {
			weight = 1
		} else {
			weight = 3
		}
	}

	return (10-sum%10)%10 == check
}
