package provisioning

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/roamsim/esim-reconciler/internal/pkg/env"
)

const defaultTimeout = 15 * time.Second

// Config carries the credentials and endpoints of the provisioning API.
type Config struct {
	APIKey     string `validate:"required"`
	APISecret  string `validate:"required"`
	EsimAPI    string `validate:"required,url"`
	ProductAPI string `validate:"required,url"`
}

// LoadConfig reads the provisioning configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		APIKey:     strings.TrimSpace(env.GetEnv("MAYA_API_KEY", "")),
		APISecret:  strings.TrimSpace(env.GetEnv("MAYA_API_SECRET", "")),
		EsimAPI:    strings.TrimSpace(env.GetEnv("MAYA_ESIM_API", "")),
		ProductAPI: strings.TrimSpace(env.GetEnv("MAYA_PRODUCT_API", "")),
	}

	v := validator.New()
	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("provisioning config invalid: %w", err)
	}
	return cfg, nil
}

// Client calls the external provisioning API. Both endpoints share one
// Basic authorization header built from the key/secret pair.
type Client struct {
	APIKey     string
	APISecret  string
	EsimAPI    string
	ProductAPI string

	HTTPClient *http.Client
}

// NewClient creates a provisioning client from a validated config.
func NewClient(cfg *Config) *Client {
	return &Client{
		APIKey:     cfg.APIKey,
		APISecret:  cfg.APISecret,
		EsimAPI:    cfg.EsimAPI,
		ProductAPI: cfg.ProductAPI,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// NewClientFromEnv creates a provisioning client from environment config.
func NewClientFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg), nil
}

// Authorization returns the base64 credential part of the Basic header.
func (c *Client) Authorization() string {
	credentials := fmt.Sprintf("%s:%s", c.APIKey, c.APISecret)
	return base64.StdEncoding.EncodeToString([]byte(credentials))
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.Authorization())
}

// IssueProfile requests a new eSIM profile for the given customer and plan
// type. A response without an esim object is valid; all dependent fields
// stay nil.
func (c *Client) IssueProfile(ctx context.Context, customerRef, planTypeID string) (*IssueProfileResponse, error) {
	payload := map[string]string{
		"customer_id":  customerRef,
		"plan_type_id": planTypeID,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.EsimAPI, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esim request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("esim request failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out IssueProfileResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("esim response invalid: %w", err)
	}
	return &out, nil
}

// FetchProduct fetches the plan detail for the given plan uid, reusing the
// same authorization header. The plan uid is appended to the product API
// base URL, matching the upstream route shape.
func (c *Client) FetchProduct(ctx context.Context, planUID string) (*ProductResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ProductAPI+planUID, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("product request failed: status=%d body=%s", resp.StatusCode, string(raw))
	}

	var out ProductResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("product response invalid: %w", err)
	}
	return &out, nil
}
