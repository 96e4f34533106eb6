// Package twilio is a minimal REST client for the pieces of Twilio this
// service touches: sending outbound WhatsApp messages and fetching inbound
// media attachments.
package twilio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxMediaSizeBytes = 16 << 20

type Config struct {
	AccountSID   string        `split_words:"true" required:"true"`
	AuthToken    string        `split_words:"true" required:"true"`
	WhatsappFrom string        `split_words:"true" default:"whatsapp:+14155238886"`
	BaseURL      string        `split_words:"true" default:"https://api.twilio.com"`
	Timeout      time.Duration `split_words:"true" default:"15s"`
}

type Client struct {
	baseURL    string
	accountSID string
	authToken  string
	from       string
	httpClient *http.Client
}

func NewClient(cfg Config) (*Client, error) {
	accountSID := strings.TrimSpace(cfg.AccountSID)
	if accountSID == "" {
		return nil, errors.New("twilio account sid is required")
	}
	authToken := strings.TrimSpace(cfg.AuthToken)
	if authToken == "" {
		return nil, errors.New("twilio auth token is required")
	}

	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("twilio base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid twilio base url: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL:    baseURL,
		accountSID: accountSID,
		authToken:  authToken,
		from:       strings.TrimSpace(cfg.WhatsappFrom),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

func MustNew(cfg Config) *Client {
	client, err := NewClient(cfg)
	if err != nil {
		panic(err)
	}
	return client
}

// From reports the configured sender identity.
func (c *Client) From() string {
	return c.from
}

// SendMessage delivers body to the given recipient from the configured
// sender identity. There is no delivery-confirmation feedback loop.
func (c *Client) SendMessage(ctx context.Context, to, body string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("recipient is required")
	}

	form := url.Values{}
	form.Set("From", c.from)
	form.Set("To", to)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build message request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(c.accountSID, c.authToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio message status=%d body=%s", resp.StatusCode, string(raw))
	}
	return nil
}

// FetchMedia downloads an inbound media attachment. Twilio media URLs are
// sometimes public and sometimes guarded, so an unauthenticated fetch is
// tried first and repeated with basic auth on 401/403. Returns the bytes
// and the Content-Type reported by the server.
func (c *Client) FetchMedia(ctx context.Context, mediaURL string) ([]byte, string, error) {
	if strings.TrimSpace(mediaURL) == "" {
		return nil, "", errors.New("media url is required")
	}

	body, mime, status, err := c.fetch(ctx, mediaURL, false)
	if err != nil {
		return nil, "", err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		body, mime, status, err = c.fetch(ctx, mediaURL, true)
		if err != nil {
			return nil, "", err
		}
	}
	if status != http.StatusOK {
		return nil, "", fmt.Errorf("media fetch status=%d", status)
	}
	return body, mime, nil
}

func (c *Client) fetch(ctx context.Context, mediaURL string, withAuth bool) ([]byte, string, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, "", 0, fmt.Errorf("build media request: %w", err)
	}
	if withAuth {
		req.SetBasicAuth(c.accountSID, c.authToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", 0, fmt.Errorf("fetch media: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSizeBytes))
	if err != nil {
		return nil, "", 0, fmt.Errorf("read media body: %w", err)
	}
	return raw, resp.Header.Get("Content-Type"), resp.StatusCode, nil
}
