package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kalambet/curador/internal/config"
	"github.com/kalambet/curador/internal/pipeline"
	"github.com/kalambet/curador/internal/schema"
)

// serverURL overrides the server address derived from the config.
var serverURL string

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return &apiClient{
		baseURL:    baseURL(cfg),
		token:      cfg.Server.APIToken,
		httpClient: &http.Client{Timeout: cfg.Generation.Timeout + 30*time.Second},
	}, nil
}

// baseURL is the address a local client reaches the server on.
func baseURL(cfg config.Config) string {
	if serverURL != "" {
		return strings.TrimRight(serverURL, "/")
	}
	host := cfg.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable at %s, is curador running? (%w)", c.baseURL, err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// Curate sends req to the curation endpoint.
func (c *apiClient) Curate(ctx context.Context, req pipeline.Request) (schema.Values, error) {
	resp, err := c.post(ctx, "/curadoria", req)
	if err != nil {
		return schema.Values{}, err
	}
	var v schema.Values
	if err := decodeJSON(resp, &v); err != nil {
		return schema.Values{}, err
	}
	return v, nil
}

// Categorize sends req to the categorization endpoint.
func (c *apiClient) Categorize(ctx context.Context, req pipeline.Request) (pipeline.CategoryResult, error) {
	resp, err := c.post(ctx, "/categorize", req)
	if err != nil {
		return pipeline.CategoryResult{}, err
	}
	var res pipeline.CategoryResult
	err = decodeJSON(resp, &res)
	return res, err
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		var env struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
			return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
