package messenger

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
)

// DefaultBaleAPIURL is the public Bale bot API.
const DefaultBaleAPIURL = "https://tapi.bale.ai"

// BaleSender delivers messages through the Bale bot API.
type BaleSender struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

func NewBaleSender(baseURL, token string) *BaleSender {
	if baseURL == "" {
		baseURL = DefaultBaleAPIURL
	}
	return &BaleSender{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Check reports a missing bot token. It does not call the API.
func (s *BaleSender) Check(context.Context) error {
	if s.Token == "" {
		return errors.New("bale bot token not set")
	}
	return nil
}

type baleRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type baleResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *BaleSender) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(baleRequest{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.BaseURL, s.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of the error.
		return fmt.Errorf("%w: %s", ErrDelivery, redact(err.Error(), s.Token))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrDelivery, err)
	}

	var out baleResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("%w: status %d", ErrDelivery, resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("%w: %s (code %d)", ErrDelivery, out.Description, out.ErrorCode)
	}
	return nil
}

func redact(s, secret string) string {
	if secret == "" {
		return s
	}
	return strings.ReplaceAll(s, secret, "***")
}
