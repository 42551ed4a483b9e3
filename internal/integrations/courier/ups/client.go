// Package ups implements the UPS Track API client. The token endpoint wants
// HTTP Basic credentials and, unlike the other carriers, returns expires_in
// as a string.
package ups

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"packtrack/internal/integrations/courier"
	"packtrack/internal/integrations/courier/oauth"
	"packtrack/internal/models"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://onlinetools.ups.com"

	tokenPath = "/security/v1/oauth/token"
	trackPath = "/api/track/v1/details/"
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
	ExpiresIn   string `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	slog.Debug("fetching new UPS OAuth token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+tokenPath, strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		return "", 0, errors.Wrap(err, "new token request")
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("ups token endpoint http %d", resp.StatusCode)
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("missing access_token in ups response")
	}

	expiresIn, err := strconv.ParseInt(tr.ExpiresIn, 10, 64)
	if err != nil {
		return "", 0, errors.Wrap(err, "parse ups expires_in")
	}

	return tr.AccessToken, time.Duration(expiresIn) * time.Second, nil
}

type trackResp struct {
	TrackResponse struct {
		Shipment []struct {
			Package []struct {
				CurrentStatus struct {
					Code        string `json:"code"`
					Description string `json:"description"`
				} `json:"currentStatus"`
			} `json:"package"`
		} `json:"shipment"`
	} `json:"trackResponse"`
}

// mapStatusCode: D delivered, M (manifest pickup) and P (pickup) are
// pre-movement, the rest is in transit.
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

func (c *Client) CheckStatus(ctx context.Context, pkg *models.Package) ([]courier.Observation, error) {
	token, err := c.tokens.Get(ctx)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+trackPath+url.PathEscape(pkg.TrackingNumber), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new track request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("transId", fmt.Sprintf("packtrack-%d", time.Now().Unix()))
	req.Header.Set("transactionSrc", "packtrack")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "track request")
	}
	defer resp.Body.Close()

	// UPS answers 404 for numbers it has no record of.
	if resp.StatusCode == http.StatusNotFound {
		slog.Debug("UPS tracking number not found", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("ups track endpoint http %d", resp.StatusCode)
	}

	var tr trackResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "decode track response")
	}

	if len(tr.TrackResponse.Shipment) == 0 || len(tr.TrackResponse.Shipment[0].Package) == 0 {
		slog.Warn("no shipment in UPS response", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}

	cur := tr.TrackResponse.Shipment[0].Package[0].CurrentStatus
	if cur.Code == "" {
		slog.Warn("no status code in UPS response", "tracking_number", pkg.TrackingNumber)
		return nil, nil
	}

	obs := courier.Observation{Status: mapStatusCode(cur.Code)}
	if cur.Description != "" {
		desc := cur.Description
		obs.Description = &desc
	}

	slog.Debug("UPS status retrieved",
		"tracking_number", pkg.TrackingNumber,
		"ups_code", cur.Code,
		"mapped_status", obs.Status.String())

	return []courier.Observation{obs}, nil
}
