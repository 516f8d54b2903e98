package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to the external notification service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a notification Client.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type welcomeEmailRequest struct {
	Email     string `json:"email"`
	Firstname string `json:"firstname"`
	Lastname  string `json:"lastname"`
}

// SendWelcomeEmail asks the notification service to deliver a welcome
// email. Callers treat failures as best-effort; nothing here retries.
func (c *Client) SendWelcomeEmail(ctx context.Context, email, firstname, lastname string) error {
	payload, err := json.Marshal(welcomeEmailRequest{
		Email:     email,
		Firstname: firstname,
		Lastname:  lastname,
	})
	if err != nil {
		return fmt.Errorf("encoding welcome email request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/email/welcome", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building welcome email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending welcome email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}
