package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/infra/resolveretry"

	"github.com/ipfs/go-cid"
)

const maxErrorBodyBytes = 4 * 1024

// Config describes a Kubo RPC endpoint (Infura style when ProjectID is set) and
// the gateway used for reads.
type Config struct {
	APIURL        string
	ProjectID     string
	ProjectSecret string
	GatewayURL    string

	// MaxUploadBytes caps payloads before any network call; zero disables the cap.
	MaxUploadBytes int64

	ResolveMaxTries     uint
	ResolveInitialDelay time.Duration
	ResolveMaxElapsed   time.Duration
}

type Client struct {
	cfg    Config
	apiURL string
	gwURL  string
	httpDo func(*http.Request) (*http.Response, error)
	retry  resolveretry.Policy
}

func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("ipfs api url is required")
	}
	if _, err := url.Parse(cfg.APIURL); err != nil {
		return nil, fmt.Errorf("parse ipfs api url: %w", err)
	}
	doer := http.DefaultClient.Do
	if httpClient != nil {
		doer = httpClient.Do
	}
	return &Client{
		cfg:    cfg,
		apiURL: strings.TrimRight(strings.TrimSpace(cfg.APIURL), "/"),
		gwURL:  strings.TrimRight(strings.TrimSpace(cfg.GatewayURL), "/"),
		httpDo: doer,
		retry: resolveretry.Policy{
			MaxTries:     cfg.ResolveMaxTries,
			InitialDelay: cfg.ResolveInitialDelay,
			MaxElapsed:   cfg.ResolveMaxElapsed,
		},
	}, nil
}

// GatewayURL is the public read base handed to clients, e.g. https://ipfs.io.
func (c *Client) GatewayURL() string {
	return c.gwURL
}

func (c *Client) UploadArtifact(ctx context.Context, data []byte, name string, _ map[string]string) (domain.Locator, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty payload", domain.ErrStoreRejected)
	}
	if name == "" {
		name = "artifact"
	}
	return c.add(ctx, name, data)
}

func (c *Client) UploadMetadata(ctx context.Context, doc domain.CertificateMetadata) (domain.Locator, error) {
	if _, err := cid.Decode(doc.ArtifactReference()); err != nil {
		return "", fmt.Errorf("%w: metadata artifact is not a cid", domain.ErrStoreRejected)
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrStoreRejected, err)
	}
	return c.add(ctx, "metadata.json", payload)
}

// Resolve fetches the bytes behind locator, retrying not-found and transient
// failures within the configured budget.
func (c *Client) Resolve(ctx context.Context, locator domain.Locator) ([]byte, error) {
	if _, err := cid.Decode(locator.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidLink, err)
	}
	return c.retry.Resolve(ctx, func(ctx context.Context) ([]byte, error) {
		return c.fetch(ctx, locator)
	})
}

func (c *Client) add(ctx context.Context, name string, data []byte) (domain.Locator, error) {
	if c.cfg.MaxUploadBytes > 0 && int64(len(data)) > c.cfg.MaxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes exceeds limit of %d", domain.ErrStoreRejected, len(data), c.cfg.MaxUploadBytes)
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	endpoint := c.apiURL + "/api/v0/add?" + url.Values{
		"cid-version": {"1"},
		"pin":         {"true"},
	}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	c.authorize(req)

	resp, err := c.httpDo(req)
	if err != nil {
		return "", transportError(ctx, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", statusError(resp.StatusCode, payload)
	}

	var added addResponse
	if err := json.Unmarshal(lastLine(payload), &added); err != nil {
		return "", fmt.Errorf("%w: decode add response: %v", domain.ErrStoreUnavailable, err)
	}
	parsed, err := cid.Decode(added.Hash)
	if err != nil {
		return "", fmt.Errorf("%w: add returned %q: %v", domain.ErrStoreUnavailable, added.Hash, err)
	}
	return domain.Locator(parsed.String()), nil
}

func (c *Client) fetch(ctx context.Context, locator domain.Locator) ([]byte, error) {
	var (
		req *http.Request
		err error
	)
	if c.gwURL != "" {
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, locator.GatewayURL(c.gwURL), nil)
	} else {
		endpoint := c.apiURL + "/api/v0/cat?" + url.Values{"arg": {locator.String()}}.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if req != nil {
			c.authorize(req)
		}
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.httpDo(req)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()
	limit := c.cfg.MaxUploadBytes
	var reader io.Reader = resp.Body
	if limit > 0 {
		reader = io.LimitReader(resp.Body, limit+1)
	}
	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, payload)
	}
	if limit > 0 && int64(len(payload)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", domain.ErrStoreRejected, locator, limit)
	}
	return payload, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.cfg.ProjectID != "" {
		req.SetBasicAuth(c.cfg.ProjectID, c.cfg.ProjectSecret)
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

type rpcError struct {
	Message string `json:"Message"`
}

// lastLine returns the final JSON object of a streamed add response.
func lastLine(payload []byte) []byte {
	lines := bytes.Split(bytes.TrimSpace(payload), []byte("\n"))
	return lines[len(lines)-1]
}

func statusError(code int, body []byte) error {
	message := strings.TrimSpace(string(truncate(body)))
	var decoded rpcError
	if json.Unmarshal(body, &decoded) == nil && decoded.Message != "" {
		message = decoded.Message
	}
	switch {
	case code == http.StatusNotFound || isNotFoundMessage(message):
		return fmt.Errorf("%w: %s", domain.ErrContentNotFound, message)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStoreUnavailable, code, message)
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStoreUnavailable, code, message)
	default:
		return fmt.Errorf("%w: status %d: %s", domain.ErrStoreRejected, code, message)
	}
}

func transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: timeout: %v", domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
}

func isNotFoundMessage(message string) bool {
	message = strings.ToLower(message)
	return strings.Contains(message, "not found") || strings.Contains(message, "no link named")
}

func truncate(body []byte) []byte {
	if len(body) > maxErrorBodyBytes {
		return body[:maxErrorBodyBytes]
	}
	return body
}
