// Package barcode resolves product details from an external barcode API.
package barcode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrNotConfigured is returned when no API key is set.
	ErrNotConfigured = errors.New("barcode lookup not configured")
	// ErrNotFound is returned when the API knows nothing about a barcode.
	ErrNotFound = errors.New("barcode not found")
)

// Config holds the barcode API settings.
type Config struct {
	APIURL string
	APIKey string
}

// Info is the product data the API returned for a barcode.
type Info struct {
	Name        string `json:"name"`
	Brand       string `json:"brand,omitempty"`
	Category    string `json:"category,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

// Client queries the barcode API.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewClient creates a barcode client. It returns ErrNotConfigured when the
// key or URL is missing.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" || cfg.APIURL == "" {
		return nil, ErrNotConfigured
	}
	return &Client{
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}, nil
}

type apiResponse struct {
	Products []struct {
		Title       string   `json:"title"`
		ProductName string   `json:"product_name"`
		Brand       string   `json:"brand"`
		Category    string   `json:"category"`
		Images      []string `json:"images"`
		Description string   `json:"description"`
	} `json:"products"`
}

// Lookup fetches the first product the API lists for code.
func (c *Client) Lookup(ctx context.Context, code string) (*Info, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, ErrNotFound
	}

	u, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("parse barcode api url: %w", err)
	}
	q := u.Query()
	q.Set("barcode", code)
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create barcode request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup barcode: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("barcode api returned status %d", resp.StatusCode)
	}

	var body apiResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode barcode response: %w", err)
	}
	if len(body.Products) == 0 {
		return nil, ErrNotFound
	}

	p := body.Products[0]
	info := &Info{
		Name:        p.Title,
		Brand:       p.Brand,
		Category:    p.Category,
		Description: p.Description,
	}
	if info.Name == "" {
		info.Name = p.ProductName
	}
	if len(p.Images) > 0 {
		info.ImageURL = p.Images[0]
	}
	return info, nil
}
