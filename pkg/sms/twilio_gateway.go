package sms

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// TwilioGateway implements SMS sending via the Twilio Messages API
type TwilioGateway struct {
	apiURL     string
	accountSID string
	authToken  string
	fromNumber string
	client     *http.Client
}

// TwilioConfig holds configuration for the Twilio gateway
type TwilioConfig struct {
	APIURL     string
	AccountSID string
	AuthToken  string
	FromNumber string
}

// NewTwilioGateway creates a new Twilio SMS gateway client
func NewTwilioGateway(config TwilioConfig) *TwilioGateway {
	return &TwilioGateway{
		apiURL:     config.APIURL,
		accountSID: config.AccountSID,
		authToken:  config.AuthToken,
		fromNumber: config.FromNumber,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// twilioResponse is the subset of the Messages API response we read
type twilioResponse struct {
	SID          string `json:"sid"`
	Status       string `json:"status"`
	ErrorCode    *int   `json:"error_code"`
	ErrorMessage string `json:"error_message"`
}

// Send sends a single SMS message
func (g *TwilioGateway) Send(to, message string) error {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(g.apiURL, "/"), g.accountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", g.fromNumber)
	form.Set("Body", message)

	req, err := http.NewRequest(http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(g.accountSID, g.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read SMS response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("SMS gateway returned status %d: %s", resp.StatusCode, string(body))
	}

	var result twilioResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse SMS response: %w", err)
	}

	if result.ErrorCode != nil {
		return fmt.Errorf("SMS gateway error %d: %s", *result.ErrorCode, result.ErrorMessage)
	}

	return nil
}
