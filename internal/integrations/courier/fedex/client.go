// Package fedex implements the FedEx Track API client. Authentication is
// OAuth client-credentials with a form-encoded token request.
package fedex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"packtrack/internal/integrations/courier"
	"packtrack/internal/integrations/courier/oauth"
	"packtrack/internal/models"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://apis-sandbox.fedex.com"

	tokenPath = "/oauth/token"
	trackPath = "/track/v1/trackingnumbers"
)

type Client struct {
	baseURL      string
	clientID     string
	clientSecret string
	httpc        *http.Client
	tokens       *oauth.TokenCache
}

func New(baseURL, clientID, clientSecret string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	c := &Client{
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	c.tokens = oauth.NewTokenCache(c.fetchToken)
	return c
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	slog.Debug("fetching new FedEx OAuth token")

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.clientID)
	form.Set("client_secret", c.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+tokenPath, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", 0, errors.Wrap(err, "new token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("fedex token endpoint http %d", resp.StatusCode)
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("missing access_token in fedex response")
	}
	if tr.ExpiresIn == nil {
		return "", 0, errors.New("missing expires_in in fedex response")
	}

	return tr.AccessToken, time.Duration(*tr.ExpiresIn) * time.Second, nil
}

type trackReq struct {
	TrackingInfo         []trackingInfo `json:"trackingInfo"`
	IncludeDetailedScans bool           `json:"includeDetailedScans"`
}

type trackingInfo struct {
	TrackingNumberInfo trackingNumberInfo `json:"trackingNumberInfo"`
}

type trackingNumberInfo struct {
	TrackingNumber string `json:"trackingNumber"`
}

type trackResp struct {
	Output struct {
		CompleteTrackResults []struct {
			TrackResults []trackResult `json:"trackResults"`
		} `json:"completeTrackResults"`
	} `json:"output"`
}

type trackResult struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	LatestStatusDetail struct {
		Code         string `json:"code"`
		ScanLocation struct {
			City                string `json:"city"`
			StateOrProvinceCode string `json:"stateOrProvinceCode"`
		} `json:"scanLocation"`
	} `json:"latestStatusDetail"`
	DateAndTimes []struct {
		Type     string `json:"type"`
		DateTime string `json:"dateTime"`
	} `json:"dateAndTimes"`
}

// mapStatusCode is the FedEx code→canonical table: DL is delivered, OC
// (order created) is pre-shipment, everything else is movement.
func mapStatusCode(code string) models.Status {
	switch code {
	case "DL":
		return models.StatusDelivered
	case "OC":
		return models.StatusWaiting
	default:
		return models.StatusInTransit
	}
}

func (c *Client) CheckStatus(ctx context.Context, pkg *models.Package) ([]courier.Observation, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	reqBody := trackReq{
		TrackingInfo: []trackingInfo{
			{TrackingNumberInfo: trackingNumberInfo{TrackingNumber: pkg.TrackingNumber}},
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, errors.Wrap(err, "marshal track request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+trackPath, bytes.NewReader(b))
	if err != nil {
		return nil, errors.Wrap(err, "new track request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "track request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("fedex track endpoint http %d", resp.StatusCode)
	}

	var tr trackResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "decode track response")
	}

	if len(tr.Output.CompleteTrackResults) == 0 ||
		len(tr.Output.CompleteTrackResults[0].TrackResults) == 0 {
		slog.Debug("empty FedEx track result", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}
	res := tr.Output.CompleteTrackResults[0].TrackResults[0]

	// A per-number error means "not found", not a transport failure.
	if res.Error != nil {
		slog.Warn("FedEx tracking error",
			"tracking_number", pkg.TrackingNumber,
			"error_code", res.Error.Code)
		return nil, nil
	}

	code := res.LatestStatusDetail.Code
	if code == "" {
		slog.Debug("no status code in FedEx response", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}

	obs := courier.Observation{Status: mapStatusCode(code)}

	for _, d := range res.DateAndTimes {
		if d.Type == "ESTIMATED_DELIVERY" && d.DateTime != "" {
			eta := d.DateTime
			obs.EstimatedArrivalDate = &eta
			break
		}
	}

	if city := res.LatestStatusDetail.ScanLocation.City; city != "" {
		loc := city
		if st := res.LatestStatusDetail.ScanLocation.StateOrProvinceCode; st != "" {
			loc = city + ", " + st
		}
		obs.LastKnownLocation = &loc
	}

	slog.Debug("FedEx status retrieved",
		"tracking_number", pkg.TrackingNumber,
		"fedex_code", code,
		"mapped_status", obs.Status.String())

	return []courier.Observation{obs}, nil
}
