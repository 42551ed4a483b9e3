package upsweb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"packtrack/internal/models"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, setCookie bool, trackBody string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/track":
			if setCookie {
				http.SetCookie(w, &http.Cookie{Name: "X-XSRF-TOKEN-ST", Value: "xsrf-123", Path: "/"})
			}
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "s-1", Path: "/"})
			_, _ = w.Write([]byte("<html></html>"))
		case "/track/api/Track/GetStatus":
			require.Equal(t, "xsrf-123", r.Header.Get("X-XSRF-Token"))
			sc, err := r.Cookie("session")
			require.NoError(t, err)
			require.Equal(t, "s-1", sc.Value)
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(trackBody))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
}

func TestCheckStatus_FullHistoryOldestFirst(t *testing.T) {
	srv := newServer(t, true, `{
  "trackDetails": [{
    "packageStatusType": "D",
    "packageStatus": "Delivered",
    "scheduledDeliveryDate": "",
    "lastLocation": "Memphis, TN, United States",
    "shipmentProgressActivities": [
      {"date": "03/05/2026", "time": "11:52 A.M.", "location": "Memphis, TN, United States", "activityScan": "Delivered"},
      {"date": "03/05/2026", "time": "6:10 A.M.", "location": "Memphis, TN, United States", "activityScan": "Out For Delivery Today"},
      {"date": "03/04/2026", "time": "9:01 P.M.", "location": "Nashville, TN, United States", "activityScan": "Departed from Facility"}
    ]
  }]
}`)
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.CheckStatus(context.Background(), &models.Package{TrackingNumber: "1Z999AA10123456784"})
	require.NoError(t, err)
	require.Len(t, obs, 3)

	// Historical waypoints are recorded as in_transit regardless of text.
	require.Equal(t, models.StatusInTransit, obs[0].Status)
	require.Equal(t, "Nashville, TN, United States", *obs[0].LastKnownLocation)
	require.Equal(t, time.Date(2026, 3, 4, 21, 1, 0, 0, time.UTC), *obs[0].CheckedAt)

	require.Equal(t, models.StatusInTransit, obs[1].Status)

	// Only the newest activity carries the package's true current status.
	require.Equal(t, models.StatusDelivered, obs[2].Status)
	require.Equal(t, "Delivered", *obs[2].Description)
	require.Equal(t, time.Date(2026, 3, 5, 11, 52, 0, 0, time.UTC), *obs[2].CheckedAt)
}

func TestCheckStatus_NoActivitiesSingleObservation(t *testing.T) {
	srv := newServer(t, true, `{
  "trackDetails": [{
    "packageStatusType": "I",
    "packageStatus": "In Transit",
    "scheduledDeliveryDate": "03/07/2026",
    "lastLocation": "Louisville, KY, United States"
  }]
}`)
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.CheckStatus(context.Background(), &models.Package{TrackingNumber: "1Z999AA10123456784"})
	require.NoError(t, err)
	require.Len(t, obs, 1)
	require.Equal(t, models.StatusInTransit, obs[0].Status)
	require.Equal(t, "03/07/2026", *obs[0].EstimatedArrivalDate)
	require.Equal(t, "Louisville, KY, United States", *obs[0].LastKnownLocation)
}

func TestCheckStatus_MissingCookieDegradesToEmpty(t *testing.T) {
	srv := newServer(t, false, `{}`)
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.CheckStatus(context.Background(), &models.Package{TrackingNumber: "1Z"})
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestCheckStatus_NonJSONDegradesToEmpty(t *testing.T) {
	srv := newServer(t, true, `<html>maintenance</html>`)
	defer srv.Close()

	c := New(srv.URL)
	obs, err := c.CheckStatus(context.Background(), &models.Package{TrackingNumber: "1Z"})
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestCheckStatus_NetworkFailureDegradesToEmpty(t *testing.T) {
	srv := newServer(t, true, `{}`)
	srv.Close()

	c := New(srv.URL)
	obs, err := c.CheckStatus(context.Background(), &models.Package{TrackingNumber: "1Z"})
	require.NoError(t, err)
	require.Empty(t, obs)
}

func TestParseActivityTime(t *testing.T) {
	ts, ok := parseActivityTime("03/05/2026", "11:52 A.M.")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 5, 11, 52, 0, 0, time.UTC), ts)

	ts, ok = parseActivityTime("03/05/2026", "9:01 P.M.")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 5, 21, 1, 0, 0, time.UTC), ts)

	ts, ok = parseActivityTime("03/05/2026", "")
	require.True(t, ok)
	require.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), ts)

	_, ok = parseActivityTime("yesterday", "11:52 A.M.")
	require.False(t, ok)
}
