// Package aiproject is a minimal REST client for agent provisioning in an
// Azure AI project. It speaks the same assistants endpoint the project SDKs
// use, addressed through the project connection string.
package aiproject

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/voicebridge/voicebridge/pkg/voicelive"
)

const apiVersion = "2024-12-01-preview"

// Client provisions agents in one AI project.
type Client struct {
	baseURL string
	tokens  voicelive.TokenProvider
	http    *http.Client
}

// NewClient builds a client from the project connection string, which has
// the form "<host>;<subscription>;<resource-group>;<project>".
func NewClient(connectionString string, tokens voicelive.TokenProvider) (*Client, error) {
	parts := strings.Split(connectionString, ";")
	if len(parts) != 4 {
		return nil, fmt.Errorf("aiproject: malformed connection string: want 4 semicolon-separated fields, got %d", len(parts))
	}
	host, sub, rg, project := parts[0], parts[1], parts[2], parts[3]
	baseURL := fmt.Sprintf(
		"https://%s/agents/v1.0/subscriptions/%s/resourceGroups/%s/providers/Microsoft.MachineLearningServices/workspaces/%s",
		host, sub, rg, project,
	)
	return &Client{baseURL: baseURL, tokens: tokens, http: http.DefaultClient}, nil
}

// CreateAgent provisions a new agent and returns its id.
func (c *Client) CreateAgent(ctx context.Context, model, name, instructions string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":        model,
		"name":         name,
		"instructions": instructions,
		"tools":        []any{},
	})
	if err != nil {
		return "", fmt.Errorf("aiproject: marshal request: %w", err)
	}

	url := c.baseURL + "/assistants?api-version=" + apiVersion
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("aiproject: build request: %w", err)
	}
	token, err := c.tokens.Token(ctx, voicelive.ScopeML)
	if err != nil {
		return "", fmt.Errorf("aiproject: acquire token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("aiproject: create agent: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("aiproject: create agent failed with status %d: %s", resp.StatusCode, detail)
	}

	var agent struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&agent); err != nil {
		return "", fmt.Errorf("aiproject: decode response: %w", err)
	}
	if agent.ID == "" {
		return "", fmt.Errorf("aiproject: response contains no agent id")
	}
	return agent.ID, nil
}
