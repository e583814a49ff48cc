/**
 * @description
 * This package provides a client for the transactional email API. It
 * encapsulates the logic for making authenticated HTTP requests to the
 * provider's send endpoint, handling request body construction, and parsing
 * error responses. The client satisfies the delivery pipeline's transport
 * interface, so every retry decision stays in the pipeline; the client
 * reports each send attempt's outcome and nothing more.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 * - github.com/google/uuid: Idempotency keys per send attempt.
 */
package mailclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/john67k/zelle-style/internal/domain"
)

// Client is a client for the mail provider API.
type Client struct {
	BaseURL     string
	APIKey      string
	FromAddress string
	FromName    string
	HTTPClient  *http.Client
}

// NewClient creates a new mail API client.
func NewClient(baseURL, apiKey, fromAddress, fromName string) *Client {
	return &Client{
		BaseURL:     baseURL,
		APIKey:      apiKey,
		FromAddress: fromAddress,
		FromName:    fromName,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// sendRequest represents the payload for the provider's send endpoint.
type sendRequest struct {
	From struct {
		Email string `json:"email"`
		Name  string `json:"name,omitempty"`
	} `json:"from"`
	To       []string `json:"to"`
	Subject  string   `json:"subject"`
	HTMLBody string   `json:"html,omitempty"`
	TextBody string   `json:"text,omitempty"`
}

// ErrorResponse represents an error from the mail API.
type ErrorResponse struct {
	StatusCode int
	Errors     []struct {
		Message string `json:"message"`
		Field   string `json:"field"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("mail api error (status %d): %s", e.StatusCode, e.Errors[0].Message)
	}
	return fmt.Sprintf("mail api error (status %d)", e.StatusCode)
}

// Send submits one message to the provider. From defaults to the client's
// configured identity when the message leaves it unset.
func (c *Client) Send(ctx context.Context, msg domain.Message) error {
	payload := sendRequest{
		To:       []string{msg.To},
		Subject:  msg.Subject,
		HTMLBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	}
	payload.From.Email = msg.FromAddr
	payload.From.Name = msg.FromName
	if payload.From.Email == "" {
		payload.From.Email = c.FromAddress
		payload.From.Name = c.FromName
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create send request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Idempotency-Key", uuid.NewString())

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	apiErr := &ErrorResponse{StatusCode: resp.StatusCode}
	if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil {
		return fmt.Errorf("mail api error (status %d): unreadable body", resp.StatusCode)
	}
	return apiErr
}
