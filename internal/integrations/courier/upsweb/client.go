// Package upsweb tracks UPS packages through the public web client instead
// of the authenticated API, for installations without UPS API credentials.
//
// The protocol is a two-step session handshake: a GET on the tracking page
// establishes browser-like session cookies and yields an anti-forgery token
// in the X-XSRF-TOKEN-ST cookie, which the track-status POST must mirror
// back as the X-XSRF-Token header.
//
// This backend scrapes an unversioned interface and is inherently fragile:
// every failure degrades to "no observations" with a warning rather than an
// error, so a UPS web-client change can never take down the poll cycle.
package upsweb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"packtrack/internal/integrations/courier"
	"packtrack/internal/integrations/courier/textparse"
	"packtrack/internal/models"
)

const (
	defaultBaseURL = "https://www.ups.com"

	pagePath  = "/track"
	trackPath = "/track/api/Track/GetStatus"

	xsrfCookie = "X-XSRF-TOKEN-ST"
	xsrfHeader = "X-XSRF-Token"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL: baseURL,
		httpc: &http.Client{
			Timeout: 60 * time.Second,
			Jar:     jar,
		},
	}
}

type trackReq struct {
	Locale         string   `json:"Locale"`
	TrackingNumber []string `json:"TrackingNumber"`
}

type trackResp struct {
	TrackDetails []trackDetail `json:"trackDetails"`
}

type trackDetail struct {
	PackageStatusType     string `json:"packageStatusType"`
	PackageStatus         string `json:"packageStatus"`
	ScheduledDeliveryDate string `json:"scheduledDeliveryDate"`
	LastLocation          string `json:"lastLocation"`

	ProgressActivities []progressActivity `json:"shipmentProgressActivities"`
}

type progressActivity struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	Location     string `json:"location"`
	ActivityScan string `json:"activityScan"`
}

func mapStatusCode(code string) models.Status {
	switch code {
	case "D":
		return models.StatusDelivered
	case "M", "P":
		return models.StatusWaiting
	default:
		return models.StatusInTransit
	}
}

// CheckStatus never returns an error: the web client degrades to an empty
// result on any failure.
func (c *Client) CheckStatus(ctx context.Context, pkg *models.Package) ([]courier.Observation, error) {
	token, ok := c.establishSession(ctx, pkg.TrackingNumber)
	if !ok {
		return nil, nil
	}

	detail, ok := c.fetchDetail(ctx, pkg.TrackingNumber, token)
	if !ok {
		return nil, nil
	}

	if detail.PackageStatusType == "" {
		slog.Warn("no status code in UPS web response", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}

	current := courier.Observation{Status: mapStatusCode(detail.PackageStatusType)}
	if detail.ScheduledDeliveryDate != "" {
		eta := detail.ScheduledDeliveryDate
		current.EstimatedArrivalDate = &eta
	}
	if detail.LastLocation != "" {
		loc := detail.LastLocation
		current.LastKnownLocation = &loc
	}
	if detail.PackageStatus != "" {
		desc := detail.PackageStatus
		current.Description = &desc
	}

	slog.Info("UPS web status retrieved",
		"tracking_number", pkg.TrackingNumber,
		"ups_code", detail.PackageStatusType,
		"mapped_status", current.Status.String())

	if len(detail.ProgressActivities) == 0 {
		return []courier.Observation{current}, nil
	}

	// Activities arrive newest first; reverse them so history insertion
	// order matches chronology. Earlier activities are historical waypoints
	// and recorded as in_transit regardless of their own text; only the
	// newest one carries the package's present state.
	obs := make([]courier.Observation, 0, len(detail.ProgressActivities))
	for i := len(detail.ProgressActivities) - 1; i >= 0; i-- {
		a := detail.ProgressActivities[i]

		o := courier.Observation{Status: models.StatusInTransit}
		if i == 0 {
			o = current
		}
		if a.Location != "" {
			loc := a.Location
			o.LastKnownLocation = &loc
		}
		if a.ActivityScan != "" {
			desc := a.ActivityScan
			o.Description = &desc
		}
		if ts, ok := parseActivityTime(a.Date, a.Time); ok {
			t := ts
			o.CheckedAt = &t
		}

		obs = append(obs, o)
	}
	return obs, nil
}

// establishSession performs step one of the handshake and returns the
// anti-forgery token.
func (c *Client) establishSession(ctx context.Context, trackingNumber string) (string, bool) {
	u := c.baseURL + pagePath + "?loc=en_US&tracknum=" + url.QueryEscape(trackingNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		slog.Warn("UPS web session request build failed", "error", err.Error())
		return "", false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Warn("UPS web session request failed",
			"tracking_number", trackingNumber, "error", err.Error())
		return "", false
	}
	defer resp.Body.Close()

	pageURL, _ := url.Parse(c.baseURL)
	for _, ck := range c.httpc.Jar.Cookies(pageURL) {
		if ck.Name == xsrfCookie {
			return ck.Value, true
		}
	}

	slog.Warn("UPS web session cookie missing",
		"tracking_number", trackingNumber, "cookie", xsrfCookie)
	return "", false
}

// fetchDetail performs step two: the track-status POST with the anti-forgery
// header and session cookies.
func (c *Client) fetchDetail(ctx context.Context, trackingNumber, token string) (trackDetail, bool) {
	payload, err := json.Marshal(trackReq{
		Locale:         "en_US",
		TrackingNumber: []string{trackingNumber},
	})
	if err != nil {
		slog.Warn("UPS web payload marshal failed", "error", err.Error())
		return trackDetail{}, false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+trackPath+"?loc=en_US", bytes.NewReader(payload))
	if err != nil {
		slog.Warn("UPS web track request build failed", "error", err.Error())
		return trackDetail{}, false
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(xsrfHeader, token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		slog.Warn("UPS web track request failed",
			"tracking_number", trackingNumber, "error", err.Error())
		return trackDetail{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		slog.Warn("UPS web track request rejected",
			"tracking_number", trackingNumber,
			"status", fmt.Sprintf("http %d", resp.StatusCode))
		return trackDetail{}, false
	}

	var tr trackResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		slog.Warn("failed to parse UPS web track response",
			"tracking_number", trackingNumber, "error", err.Error())
		return trackDetail{}, false
	}
	if len(tr.TrackDetails) == 0 {
		slog.Warn("empty UPS web track response", "tracking_number", trackingNumber)
		return trackDetail{}, false
	}

	return tr.TrackDetails[0], true
}

// parseActivityTime combines an activity's "03/05/2026" date with its
// "11:52 A.M." clock time.
func parseActivityTime(date, clock string) (time.Time, bool) {
	d, ok := textparse.Date(date)
	if !ok {
		return time.Time{}, false
	}
	if clock == "" {
		return d, true
	}

	norm := strings.ToLower(strings.ReplaceAll(clock, ".", ""))
	t, err := time.ParseInLocation("3:04 pm", norm, time.UTC)
	if err != nil {
		return d, true
	}
	return d.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), true
}
