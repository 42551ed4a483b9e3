package textparse

import (
	"testing"
	"time"

	"packtrack/internal/models"
	"github.com/stretchr/testify/require"
)

func TestStatus_Keywords(t *testing.T) {
	cases := []struct {
		summary string
		want    models.Status
		matched bool
	}{
		{"Delivered, In/At Mailbox", models.StatusDelivered, true},
		{"Shipping Label Created, USPS Awaiting Item", models.StatusWaiting, true},
		{"Arrived at USPS Regional Facility", models.StatusInTransit, true},
		{"Departed Post Office", models.StatusInTransit, true},
		{"Out for Delivery", models.StatusInTransit, true},
		{"Something unrecognizable", models.StatusInTransit, false},
	}
	for _, c := range cases {
		got, ok := Status(c.summary)
		require.Equal(t, c.want, got, c.summary)
		require.Equal(t, c.matched, ok, c.summary)
	}
}

func TestStatus_Idempotent(t *testing.T) {
	s1, _ := Status("Departed Post Office")
	s2, _ := Status("Departed Post Office")
	require.Equal(t, s1, s2)
	require.True(t, s1.Valid())
}

func TestDate_SlashNumeric(t *testing.T) {
	d, ok := Date("Out for Delivery, expected by 03/05/2026")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), d)
}

func TestDate_MonthName(t *testing.T) {
	d, ok := Date("Delivered, March 5, 2026, 11:52 pm")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 5, 23, 52, 0, 0, time.UTC), d)

	d, ok = Date("Arrived at Facility, January 2, 2026")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), d)
}

func TestDate_SlashWinsOverMonth(t *testing.T) {
	d, ok := Date("Rescheduled from January 2, 2026 to 01/03/2026")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC), d)
}

func TestDate_NoMatch(t *testing.T) {
	_, ok := Date("Arrived at facility")
	require.False(t, ok)
}

func TestLocation_CityState(t *testing.T) {
	loc, ok := Location("Departed Post Office, MEMPHIS, TN 38101")
	require.True(t, ok)
	require.Equal(t, "MEMPHIS, TN", loc)
}

func TestLocation_Facility(t *testing.T) {
	loc, ok := Location("Arrived at MEMPHIS TN DISTRIBUTION CENTER")
	require.True(t, ok)
	require.Equal(t, "MEMPHIS TN DISTRIBUTION CENTER", loc)
}

func TestLocation_NoMatch(t *testing.T) {
	_, ok := Location("In transit to next facility")
	require.False(t, ok)
}
