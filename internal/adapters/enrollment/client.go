package enrollment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"optionbooking/internal/domain"
)

type enrollmentHTTPClient struct {
	client  *http.Client
	baseURL string
}

// NewHTTPClient returns an EnrollmentClient that calls the external
// enrollment API under baseURL.
func NewHTTPClient(client *http.Client, baseURL string) domain.EnrollmentClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &enrollmentHTTPClient{client: client, baseURL: baseURL}
}

type enrollmentRequest struct {
	UserID   string `json:"user_id"`
	OptionID string `json:"option_id"`
}

func (c *enrollmentHTTPClient) post(ctx context.Context, path, userID, optionID string) error {
	body, err := json.Marshal(enrollmentRequest{UserID: userID, OptionID: optionID})
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call enrollment api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("enrollment api returned status: %d", resp.StatusCode)
	}
	return nil
}

func (c *enrollmentHTTPClient) Enroll(ctx context.Context, userID, optionID string) error {
	return c.post(ctx, "/enrollments", userID, optionID)
}

func (c *enrollmentHTTPClient) Unenroll(ctx context.Context, userID, optionID string) error {
	return c.post(ctx, "/enrollments/remove", userID, optionID)
}
