package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrSecretNotFound is returned by ReadKV when the path holds no secret.
var ErrSecretNotFound = errors.New("vault secret not found")

// Client speaks the KV v2 subset of the Vault HTTP API.
type Client struct {
	addr       string
	token      string
	httpClient *http.Client
}

func New(addr, token string) *Client {
	return &Client{
		addr:       strings.TrimRight(addr, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) ReadKV(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	default:
		return fmt.Errorf("vault read failed: status %d", resp.StatusCode)
	}

	var envelope struct {
		Data struct {
			Data json.RawMessage `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return err
	}
	if len(envelope.Data.Data) == 0 || string(envelope.Data.Data) == "null" {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, path)
	}
	return json.Unmarshal(envelope.Data.Data, out)
}

func (c *Client) WriteKV(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(map[string]any{"data": payload})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("vault write failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) DeleteKV(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vault delete failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	if c == nil {
		return nil, errors.New("vault client is nil")
	}
	if c.addr == "" || c.token == "" {
		return nil, errors.New("vault addr or token missing")
	}
	if path == "" {
		return nil, errors.New("vault path is required")
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.addr+"/v1/"+strings.TrimLeft(path, "/"), reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Vault-Token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}
