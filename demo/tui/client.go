package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"reelgen/api"
	"reelgen/pipeline"
)

// ReelClient is a thin HTTP client for the reel API.
type ReelClient struct {
	baseURL string
	client  *http.Client
}

// NewReelClient creates a client for the API at baseURL.
func NewReelClient(baseURL string) *ReelClient {
	return &ReelClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Categories lists the background categories and their clip counts.
func (c *ReelClient) Categories() ([]api.CategoryResponse, error) {
	var body struct {
		Categories []api.CategoryResponse `json:"categories"`
	}
	if err := c.getJSON("/api/categories", &body); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return body.Categories, nil
}

// Create submits a script and returns the new run ID.
func (c *ReelClient) Create(script, category string) (string, error) {
	payload, err := json.Marshal(api.CreateReelRequest{Script: script, Category: category})
	if err != nil {
		return "", err
	}
	resp, err := c.client.Post(c.baseURL+"/api/reels", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create reel: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	var created api.CreateReelResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return created.RunID, nil
}

// Status fetches the status of a run.
func (c *ReelClient) Status(runID string) (*pipeline.Status, error) {
	var st pipeline.Status
	if err := c.getJSON("/api/reels/"+url.PathEscape(runID), &st); err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	return &st, nil
}

// VideoURL is where a finished reel can be downloaded.
func (c *ReelClient) VideoURL(runID string) string {
	return c.baseURL + "/api/reels/" + url.PathEscape(runID) + "/video"
}

func (c *ReelClient) getJSON(path string, out any) error {
	resp, err := c.client.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
