package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/tidwall/gjson"
)

// Sender delivers a text message to a phone number in E.164 form.
type Sender interface {
	Send(ctx context.Context, to, text string) error
}

// LogSender writes messages to the log instead of sending them.  It is
// used when no WhatsApp credentials are configured.
type LogSender struct {
	L Logger
}

func (s LogSender) Send(_ context.Context, to, text string) error {
	s.L.Infof("whatsapp to %s: %s", to, strings.ReplaceAll(text, "\n", " | "))
	return nil
}

// WhatsAppConfig addresses the WhatsApp Cloud API.
type WhatsAppConfig struct {
	BaseURL       string
	APIVersion    string
	PhoneNumberID string
	AccessToken   string
	MaxTries      uint
	RetryInterval time.Duration
}

// WhatsAppSender posts text messages to the WhatsApp Cloud API.
// Rate-limit and server errors are retried with exponential backoff;
// other 4xx responses fail immediately.
type WhatsAppSender struct {
	conf   WhatsAppConfig
	client *http.Client
}

func NewWhatsAppSender(conf WhatsAppConfig, client *http.Client) *WhatsAppSender {
	if conf.BaseURL == "" {
		conf.BaseURL = "https://graph.facebook.com"
	}
	if conf.APIVersion == "" {
		conf.APIVersion = "v21.0"
	}
	if conf.MaxTries == 0 {
		conf.MaxTries = 3
	}
	if conf.RetryInterval <= 0 {
		conf.RetryInterval = 500 * time.Millisecond
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &WhatsAppSender{conf: conf, client: client}
}

type waText struct {
	Body string `json:"body"`
}

type waMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             waText `json:"text"`
}

func (s *WhatsAppSender) Send(ctx context.Context, to, text string) error {
	body, err := json.Marshal(waMessage{
		MessagingProduct: "whatsapp",
		To:               strings.TrimPrefix(to, "+"),
		Type:             "text",
		Text:             waText{Body: text},
	})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/%s/%s/messages", strings.TrimRight(s.conf.BaseURL, "/"), s.conf.APIVersion, s.conf.PhoneNumberID)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.conf.RetryInterval

	_, err = backoff.Retry(ctx, func() (string, error) {
		return s.post(ctx, url, body)
	}, backoff.WithBackOff(bo), backoff.WithMaxTries(s.conf.MaxTries))
	return err
}

// post returns the message id on success.
func (s *WhatsAppSender) post(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Bearer "+s.conf.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", err
	}
	if resp.StatusCode/100 == 2 {
		return gjson.GetBytes(raw, "messages.0.id").String(), nil
	}

	apiErr := &APIError{
		Status:  resp.StatusCode,
		Code:    gjson.GetBytes(raw, "error.code").Int(),
		Message: gjson.GetBytes(raw, "error.message").String(),
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return "", apiErr
	}
	return "", backoff.Permanent(apiErr)
}

// APIError is a non-2xx response from the WhatsApp Cloud API.
type APIError struct {
	Status  int
	Code    int64
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("whatsapp: status %d", e.Status)
	}
	return fmt.Sprintf("whatsapp: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// IsAPIError returns the APIError in err's chain, if any.
func IsAPIError(err error) *APIError {
	var target *APIError
	if errors.As(err, &target) {
		return target
	}
	return nil
}
