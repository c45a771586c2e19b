// Package wiki searches English Wikipedia.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/weastcoast/weastcoastbot/internal/apperrors"
	"github.com/weastcoast/weastcoastbot/internal/httpclient"
)

// BaseURL is the MediaWiki API endpoint
const BaseURL = "https://en.wikipedia.org/w/api.php"

// Client is a Wikipedia OpenSearch client
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient creates a client. An empty baseURL uses English Wikipedia.
func NewClient(http *httpclient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{http: http, baseURL: baseURL}
}

// Search returns the link to the best matching article
func (c *Client) Search(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", apperrors.NewValidation("search text is required")
	}

	params := url.Values{
		"action":    []string{"opensearch"},
		"limit":     []string{"1"},
		"namespace": []string{"0"},
		"format":    []string{"json"},
		"search":    []string{text},
	}

	// [query, [titles], [descriptions], [links]]
	var resp []json.RawMessage
	if err := c.http.GetJSON(ctx, c.baseURL, params, nil, &resp); err != nil {
		return "", fmt.Errorf("failed to search wikipedia: %w", err)
	}

	var links []string
	if len(resp) >= 4 {
		if err := json.Unmarshal(resp[3], &links); err != nil {
			return "", fmt.Errorf("failed to decode wikipedia links: %w", err)
		}
	}
	if len(links) == 0 {
		return "", apperrors.NewNotFound("article", fmt.Sprintf("Sorry, couldn't find article for '%s'", text))
	}
	return links[0], nil
}
