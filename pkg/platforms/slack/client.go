package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/kart-io/sendhub/pkg/errors"
	"github.com/kart-io/sendhub/pkg/logger"
	"github.com/kart-io/sendhub/pkg/platform"
)

const apiURL = "https://slack.com/api/chat.postMessage"

// Client delivers Slack messages over a single reusable HTTP client.
type Client struct {
	cfg        senderConfig
	httpClient *http.Client
	logger     logger.Logger

	mu     sync.Mutex
	closed bool
}

// NewClient validates the sender configuration and returns a client holding
// one HTTP client shared by all sends in the run.
func (p *Platform) NewClient(ctx context.Context, senderDoc map[string]interface{}) (platform.Client, error) {
	cfg, err := parseSenderConfig(senderDoc)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("slack client created", "method", cfg.method())

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.timeout},
		logger:     p.logger,
	}, nil
}

type apiPayload struct {
	Channel   string `json:"channel"`
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
	ThreadTS  string `json:"thread_ts,omitempty"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Send posts the content to one recipient.
func (c *Client) Send(ctx context.Context, recipient platform.Recipient, content string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New(errors.ErrClientClosed, "slack client is closed").WithPlatform(PlatformName)
	}
	c.mu.Unlock()

	target, ok := recipient.(Recipient)
	if !ok {
		return errors.Newf(errors.ErrInvalidRecipientSpec, "recipient %T is not a slack recipient", recipient).WithPlatform(PlatformName)
	}

	url := apiURL
	if c.cfg.token == "" {
		url = c.cfg.webhookURL
	}
	return c.post(ctx, url, target, content)
}

// post delivers one payload to the given endpoint.
func (c *Client) post(ctx context.Context, url string, target Recipient, content string) error {
	payload := apiPayload{
		Channel:   target.Channel,
		Text:      content,
		Username:  c.cfg.username,
		IconEmoji: c.cfg.iconEmoji,
		ThreadTS:  target.ThreadTS,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "failed to encode slack payload").WithPlatform(PlatformName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "failed to build slack request").WithPlatform(PlatformName)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.ErrSendFailed, "slack request failed").
			WithPlatform(PlatformName).WithRecipient(target.ID())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Newf(errors.ErrSendFailed, "slack returned status %d: %s", resp.StatusCode, string(respBody)).
			WithPlatform(PlatformName).WithRecipient(target.ID())
	}

	// The chat.postMessage API reports failures inside a 200 response.
	if c.cfg.token != "" {
		var apiResp apiResponse
		if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
			return errors.Wrap(err, errors.ErrSendFailed, "failed to decode slack response").
				WithPlatform(PlatformName).WithRecipient(target.ID())
		}
		if !apiResp.OK {
			return errors.New(errors.ErrSendFailed, fmt.Sprintf("slack API error: %s", apiResp.Error)).
				WithPlatform(PlatformName).WithRecipient(target.ID())
		}
	}

	c.logger.Debug("slack message delivered", "channel", target.Channel)
	return nil
}

// Close releases the client. Further sends fail with a closed error.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.httpClient.CloseIdleConnections()
	return nil
}
