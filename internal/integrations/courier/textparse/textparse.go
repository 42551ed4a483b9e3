// Package textparse holds the free-text heuristics used when a carrier
// reports events as prose summaries instead of structured fields. Each
// function tries its patterns in a fixed order and reports whether anything
// matched, so callers keep explicit control over fallbacks.
package textparse

import (
	"regexp"
	"strings"
	"time"

	"packtrack/internal/models"
)

var deliveredWords = []string{
	"DELIVERED",
}

var waitingWords = []string{
	"LABEL CREATED",
	"SHIPPING LABEL",
	"PRE-SHIPMENT",
	"AWAITING ITEM",
	"ORDER PROCESSED",
}

var inTransitWords = []string{
	"IN TRANSIT",
	"OUT FOR DELIVERY",
	"ARRIVED",
	"DEPARTED",
	"ACCEPTED",
	"PICKED UP",
	"IN POSSESSION",
	"PROCESSED THROUGH",
	"FORWARDED",
}

// Status maps an event summary onto the canonical state by keyword. The
// delivered keywords win over transit ones ("delivered" beats "out for
// delivery" when both appear, which they never should).
func Status(summary string) (models.Status, bool) {
	upper := strings.ToUpper(summary)

	for _, w := range deliveredWords {
		if strings.Contains(upper, w) {
			return models.StatusDelivered, true
		}
	}
	for _, w := range waitingWords {
		if strings.Contains(upper, w) {
			return models.StatusWaiting, true
		}
	}
	for _, w := range inTransitWords {
		if strings.Contains(upper, w) {
			return models.StatusInTransit, true
		}
	}
	return models.StatusInTransit, false
}

var (
	slashDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	monthDateRe = regexp.MustCompile(`\b(January|February|March|April|May|June|July|August|September|October|November|December) (\d{1,2}), (\d{4})(?:,? (\d{1,2}:\d{2}) (am|pm))?\b`)
)

// Date extracts a timestamp from an event summary. Slash-separated numeric
// dates are tried first, then "Month Day, Year" with an optional time.
// Times are taken as UTC; courier feeds do not carry zones in prose.
func Date(summary string) (time.Time, bool) {
	if m := slashDateRe.FindStringSubmatch(summary); m != nil {
		t, err := time.ParseInLocation("1/2/2006", m[1]+"/"+m[2]+"/"+m[3], time.UTC)
		if err == nil {
			return t, true
		}
	}

	if m := monthDateRe.FindStringSubmatch(summary); m != nil {
		base := m[1] + " " + m[2] + ", " + m[3]
		if m[4] != "" {
			t, err := time.ParseInLocation("January 2, 2006 3:04 pm", base+" "+m[4]+" "+m[5], time.UTC)
			if err == nil {
				return t, true
			}
		}
		t, err := time.ParseInLocation("January 2, 2006", base, time.UTC)
		if err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}

var (
	cityStateRe = regexp.MustCompile(`\b([A-Z][A-Z .]*[A-Z]),\s*([A-Z]{2})\b`)
	facilityRe  = regexp.MustCompile(`\b([A-Z][A-Z ]*(?:DISTRIBUTION CENTER|REGIONAL FACILITY|NETWORK FACILITY|FACILITY|POST OFFICE|ANNEX))\b`)
)

// Location extracts a place from an event summary: "CITY, ST" first, then a
// no-comma facility name.
func Location(summary string) (string, bool) {
	if m := cityStateRe.FindStringSubmatch(summary); m != nil {
		return m[1] + ", " + m[2], true
	}
	if m := facilityRe.FindStringSubmatch(summary); m != nil {
		return m[1], true
	}
	return "", false
}
