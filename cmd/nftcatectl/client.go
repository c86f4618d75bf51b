package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type client struct {
	BaseURL   string
	Token     string
	OutFormat string // "json" | "text"
	HTTP      *http.Client
	out       io.Writer
}

func (c *client) do(ctx context.Context, method, path, contentType string, body io.Reader) (int, []byte, error) {
	url := strings.TrimRight(c.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

func (c *client) postJSON(ctx context.Context, path string, payload any) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", bytes.NewReader(b))
}

// print writes a 2xx body, or turns any other status into an error carrying
// the server's code and message.
func (c *client) print(op string, status int, body []byte) error {
	if status/100 != 2 {
		var apiErr struct {
			Code    string         `json:"code"`
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
			if len(apiErr.Details) > 0 {
				details, _ := json.Marshal(apiErr.Details)
				return fmt.Errorf("%s failed: status=%d code=%s message=%s details=%s", op, status, apiErr.Code, apiErr.Message, details)
			}
			return fmt.Errorf("%s failed: status=%d code=%s message=%s", op, status, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("%s failed: status=%d body=%s", op, status, string(body))
	}
	if c.OutFormat == "json" {
		var v any
		if json.Unmarshal(body, &v) == nil {
			p, _ := json.MarshalIndent(v, "", "  ")
			fmt.Fprintln(c.out, string(p))
			return nil
		}
	}
	fmt.Fprintln(c.out, strings.TrimSpace(string(body)))
	return nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

const defaultTimeout = 3 * time.Minute
