// Package twilio wraps the slice of the Twilio REST API used by the
// sync checkers: the IncomingPhoneNumber inventory, Messaging
// Services with their phone-number memberships and A2P campaign
// registrations, and the membership mutations used by the clean step.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultAPIBaseURL       = "https://api.twilio.com"
	defaultMessagingBaseURL = "https://messaging.twilio.com"
	defaultPageSize         = 1000
)

// IncomingNumber is one phone number owned by the account.
type IncomingNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

// MessagingService is one Messaging Service resource.
type MessagingService struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	UseCase      string `json:"usecase"`
}

// ServiceNumber is one phone number enrolled in a Messaging Service.
type ServiceNumber struct {
	SID         string `json:"sid"`
	PhoneNumber string `json:"phone_number"`
}

// Campaign is one A2P campaign registration on a Messaging Service.
type Campaign struct {
	SID            string `json:"sid"`
	CampaignStatus string `json:"campaign_status"`
}

// Client defines the Twilio operations used by this application.
type Client interface {
	ListIncomingNumbers(ctx context.Context) ([]IncomingNumber, error)
	ListMessagingServices(ctx context.Context) ([]MessagingService, error)
	ListServiceNumbers(ctx context.Context, serviceSID string) ([]ServiceNumber, error)
	ListServiceCampaigns(ctx context.Context, serviceSID string) ([]Campaign, error)
	AddNumberToService(ctx context.Context, serviceSID, numberSID string) error
	RemoveNumberFromService(ctx context.Context, serviceSID, numberSID string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithAPIBaseURL overrides the core API base URL.
func WithAPIBaseURL(u string) Option {
	return func(c *httpClient) { c.apiBaseURL = strings.TrimRight(u, "/") }
}

// WithMessagingBaseURL overrides the Messaging API base URL.
func WithMessagingBaseURL(u string) Option {
	return func(c *httpClient) { c.messagingBaseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithRateLimit overrides the default request throttle (10 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	accountSID       string
	authToken        string
	apiBaseURL       string
	messagingBaseURL string
	http             *http.Client
	limiter          *rate.Limiter
}

// NewClient creates a Twilio client authenticated with the account SID
// and auth token.
func NewClient(accountSID, authToken string, opts ...Option) Client {
	c := &httpClient{
		accountSID:       accountSID,
		authToken:        authToken,
		apiBaseURL:       defaultAPIBaseURL,
		messagingBaseURL: defaultMessagingBaseURL,
		limiter:          rate.NewLimiter(10, 10),
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// do performs one authenticated request and decodes the JSON response
// into out (when non-nil).
func (c *httpClient) do(ctx context.Context, method, rawURL string, form url.Values, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "twilio: rate limit")
	}

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return eris.Wrapf(err, "twilio: build %s %s", method, rawURL)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrapf(err, "twilio: %s %s", method, rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return eris.Errorf("twilio: %s %s: status %d: %s", method, rawURL, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return eris.Wrapf(err, "twilio: decode %s %s", method, rawURL)
	}
	return nil
}

// ListIncomingNumbers pages through the account's IncomingPhoneNumber
// inventory (core API, next_page_uri paging).
func (c *httpClient) ListIncomingNumbers(ctx context.Context) ([]IncomingNumber, error) {
	var all []IncomingNumber
	next := fmt.Sprintf("/2010-04-01/Accounts/%s/IncomingPhoneNumbers.json?PageSize=%d", c.accountSID, defaultPageSize)
	for next != "" {
		var page struct {
			IncomingPhoneNumbers []IncomingNumber `json:"incoming_phone_numbers"`
			NextPageURI          string           `json:"next_page_uri"`
		}
		if err := c.do(ctx, http.MethodGet, c.apiBaseURL+next, nil, &page); err != nil {
			return nil, eris.Wrap(err, "twilio: list incoming numbers")
		}
		all = append(all, page.IncomingPhoneNumbers...)
		next = page.NextPageURI
	}
	return all, nil
}

// messagingMeta is the paging envelope of the Messaging API.
type messagingMeta struct {
	NextPageURL string `json:"next_page_url"`
}

// ListMessagingServices pages through the account's Messaging Services.
func (c *httpClient) ListMessagingServices(ctx context.Context) ([]MessagingService, error) {
	var all []MessagingService
	next := fmt.Sprintf("%s/v1/Services?PageSize=%d", c.messagingBaseURL, defaultPageSize)
	for next != "" {
		var page struct {
			Services []MessagingService `json:"services"`
			Meta     messagingMeta      `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, eris.Wrap(err, "twilio: list messaging services")
		}
		all = append(all, page.Services...)
		next = page.Meta.NextPageURL
	}
	return all, nil
}

// ListServiceNumbers returns the phone numbers enrolled in a service.
func (c *httpClient) ListServiceNumbers(ctx context.Context, serviceSID string) ([]ServiceNumber, error) {
	var all []ServiceNumber
	next := fmt.Sprintf("%s/v1/Services/%s/PhoneNumbers?PageSize=%d", c.messagingBaseURL, serviceSID, defaultPageSize)
	for next != "" {
		var page struct {
			PhoneNumbers []ServiceNumber `json:"phone_numbers"`
			Meta         messagingMeta   `json:"meta"`
		}
		if err := c.do(ctx, http.MethodGet, next, nil, &page); err != nil {
			return nil, eris.Wrapf(err, "twilio: list numbers of service %s", serviceSID)
		}
		all = append(all, page.PhoneNumbers...)
		next = page.Meta.NextPageURL
	}
	return all, nil
}

// ListServiceCampaigns returns the A2P campaign registrations of a service.
func (c *httpClient) ListServiceCampaigns(ctx context.Context, serviceSID string) ([]Campaign, error) {
	var page struct {
		Compliance []Campaign `json:"us_app_to_person"`
	}
	u := fmt.Sprintf("%s/v1/Services/%s/Compliance/Usa2p", c.messagingBaseURL, serviceSID)
	if err := c.do(ctx, http.MethodGet, u, nil, &page); err != nil {
		return nil, eris.Wrapf(err, "twilio: list campaigns of service %s", serviceSID)
	}
	return page.Compliance, nil
}

// AddNumberToService enrolls a phone number in a Messaging Service.
func (c *httpClient) AddNumberToService(ctx context.Context, serviceSID, numberSID string) error {
	u := fmt.Sprintf("%s/v1/Services/%s/PhoneNumbers", c.messagingBaseURL, serviceSID)
	form := url.Values{"PhoneNumberSid": {numberSID}}
	if err := c.do(ctx, http.MethodPost, u, form, nil); err != nil {
		return eris.Wrapf(err, "twilio: add number %s to service %s", numberSID, serviceSID)
	}
	return nil
}

// RemoveNumberFromService removes a phone number from a Messaging Service.
func (c *httpClient) RemoveNumberFromService(ctx context.Context, serviceSID, numberSID string) error {
	u := fmt.Sprintf("%s/v1/Services/%s/PhoneNumbers/%s", c.messagingBaseURL, serviceSID, numberSID)
	if err := c.do(ctx, http.MethodDelete, u, nil, nil); err != nil {
		return eris.Wrapf(err, "twilio: remove number %s from service %s", numberSID, serviceSID)
	}
	return nil
}
