package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MegaGrindStone/dashboard-chat/internal/models"
)

// Client talks to the remote conversation service over HTTP. It implements conversation.Service.
type Client struct {
	baseURL string

	client *http.Client

	logger *slog.Logger
}

// HistoryResponse is the body of GET /chat. Messages is absent when the user has no history.
type HistoryResponse struct {
	Messages []models.Message `json:"Messages,omitempty"`
}

// SendRequest is the body of POST /chat.
type SendRequest struct {
	Content string `json:"content"`
	UserID  string `json:"user_id"`
}

// SendResponse is the reply to POST /chat. Answer is absent when the service has nothing to say.
type SendResponse struct {
	Answer string `json:"answer,omitempty"`
}

// NewClient creates a Client for the service at baseURL. A zero timeout leaves requests bounded only
// by their context.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) Client {
	return Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With(slog.String("module", "client")),
	}
}

// History fetches the stored messages of userID.
func (c Client) History(ctx context.Context, userID string) ([]models.Message, error) {
	u := c.baseURL + "/chat?" + url.Values{"user_id": {userID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	var res HistoryResponse
	if err := c.do(req, &res); err != nil {
		return nil, err
	}

	c.logger.Debug("History fetched",
		slog.String("userID", userID),
		slog.Int("count", len(res.Messages)))

	return res.Messages, nil
}

// Send submits content for userID and returns the answer, which may be empty.
func (c Client) Send(ctx context.Context, userID, content string) (string, error) {
	jsonBody, err := json.Marshal(SendRequest{Content: content, UserID: userID})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var res SendResponse
	if err := c.do(req, &res); err != nil {
		return "", err
	}
	return res.Answer, nil
}

func (c Client) do(req *http.Request, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
