// Package usps implements the USPS Tracking v3 client. The token endpoint
// takes JSON-encoded client credentials.
//
// USPS responses come in two shapes: a structured statusCategory field, or
// (for some mail classes) only a list of free-text event summaries. The
// structured field wins when present; otherwise each summary is parsed
// heuristically and emitted as its own observation, oldest first, so the
// history insertion order matches chronology.
package usps

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
	"packtrack/internal/integrations/courier/textparse"
	"packtrack/internal/models"
	"github.com/pkg/errors"
)

const (
	defaultBaseURL = "https://apis.usps.com"

	tokenPath = "/oauth2/v3/token"
	trackPath = "/tracking/v3/tracking/"
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

type tokenReq struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	GrantType    string `json:"grant_type"`
}

type tokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   *int64 `json:"expires_in"`
}

func (c *Client) fetchToken(ctx context.Context) (string, time.Duration, error) {
	slog.Debug("fetching new USPS OAuth token")

	b, err := json.Marshal(tokenReq{
		ClientID:     c.clientID,
		ClientSecret: c.clientSecret,
		GrantType:    "client_credentials",
	})
	if err != nil {
		return "", 0, errors.Wrap(err, "marshal token request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+tokenPath, bytes.NewReader(b))
	if err != nil {
		return "", 0, errors.Wrap(err, "new token request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", 0, errors.Wrap(err, "token request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return "", 0, fmt.Errorf("usps token endpoint http %d", resp.StatusCode)
	}

	var tr tokenResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return "", 0, errors.Wrap(err, "decode token response")
	}
	if tr.AccessToken == "" {
		return "", 0, errors.New("missing access_token in usps response")
	}
	if tr.ExpiresIn == nil {
		return "", 0, errors.New("missing expires_in in usps response")
	}

	return tr.AccessToken, time.Duration(*tr.ExpiresIn) * time.Second, nil
}

type trackResp struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`

	StatusCategory       string   `json:"statusCategory"`
	StatusSummary        string   `json:"statusSummary"`
	ExpectedDeliveryDate string   `json:"expectedDeliveryDate"`
	City                 string   `json:"city"`
	State                string   `json:"state"`
	EventSummaries       []string `json:"eventSummaries"`
}

// mapStatusCategory is the USPS category→canonical table.
func mapStatusCategory(category string) models.Status {
	switch category {
	case "Delivered":
		return models.StatusDelivered
	case "Pre-Shipment":
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

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "track request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("usps track endpoint http %d", resp.StatusCode)
	}

	var tr trackResp
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, errors.Wrap(err, "decode track response")
	}

	// An error envelope means USPS has no record yet.
	if tr.Error != nil {
		slog.Warn("USPS tracking error",
			"tracking_number", pkg.TrackingNumber,
			"error_code", tr.Error.Code,
			"error_message", tr.Error.Message)
		return nil, nil
	}

	if tr.StatusCategory != "" {
		obs := courier.Observation{Status: mapStatusCategory(tr.StatusCategory)}
		if tr.ExpectedDeliveryDate != "" {
			eta := tr.ExpectedDeliveryDate
			obs.EstimatedArrivalDate = &eta
		}
		if tr.City != "" {
			loc := tr.City
			if tr.State != "" {
				loc = tr.City + ", " + tr.State
			}
			obs.LastKnownLocation = &loc
		}
		if tr.StatusSummary != "" {
			desc := tr.StatusSummary
			obs.Description = &desc
		}

		slog.Debug("USPS status retrieved",
			"tracking_number", pkg.TrackingNumber,
			"usps_category", tr.StatusCategory,
			"mapped_status", obs.Status.String())

		return []courier.Observation{obs}, nil
	}

	if len(tr.EventSummaries) > 0 {
		slog.Debug("USPS structured status absent, parsing event summaries",
			"tracking_number", pkg.TrackingNumber,
			"events", len(tr.EventSummaries))
		return parseEventSummaries(tr.EventSummaries), nil
	}

	slog.Debug("no statusCategory in USPS response", "tracking_number", pkg.TrackingNumber)
	return nil, nil
}

// parseEventSummaries turns free-text summaries (newest first on the wire)
// into observations, oldest first.
func parseEventSummaries(summaries []string) []courier.Observation {
	out := make([]courier.Observation, 0, len(summaries))
	for i := len(summaries) - 1; i >= 0; i-- {
		s := summaries[i]

		status, _ := textparse.Status(s)
		obs := courier.Observation{Status: status}

		if ts, ok := textparse.Date(s); ok {
			t := ts
			obs.CheckedAt = &t
		}
		if loc, ok := textparse.Location(s); ok {
			l := loc
			obs.LastKnownLocation = &l
		}
		desc := s
		obs.Description = &desc

		out = append(out, obs)
	}
	return out
}
