package vaultclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestClient_ReadWriteDeleteKV(t *testing.T) {
	t.Parallel()
	const token = "vault-token"
	var (
		readCalled   bool
		writeCalled  bool
		deleteCalled bool
	)
	const path = "secret/data/nftcate/dev/issuers/inst-1/keys/primary"

	client := New("https://vault.example", token)
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			if r.Header.Get("X-Vault-Token") != token {
				return &http.Response{
					StatusCode: http.StatusForbidden,
					Body:       io.NopCloser(bytes.NewReader(nil)),
					Header:     make(http.Header),
				}, nil
			}
			switch r.Method {
			case http.MethodGet:
				readCalled = true
				if r.URL.Path != "/v1/"+path {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				resp := map[string]any{
					"data": map[string]any{
						"data": map[string]string{
							"private_key_hex": "aa11",
						},
					},
				}
				payload, _ := json.Marshal(resp)
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewReader(payload)),
					Header:     make(http.Header),
				}, nil
			case http.MethodPut:
				writeCalled = true
				if r.URL.Path != "/v1/"+path {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				body, _ := io.ReadAll(r.Body)
				var decoded map[string]map[string]string
				if err := json.Unmarshal(body, &decoded); err != nil {
					t.Fatalf("decode body: %v", err)
				}
				if decoded["data"]["private_key_hex"] != "aa11" {
					t.Fatalf("unexpected payload: %v", decoded)
				}
				return &http.Response{
					StatusCode: http.StatusOK,
					Body:       io.NopCloser(bytes.NewReader(nil)),
					Header:     make(http.Header),
				}, nil
			case http.MethodDelete:
				deleteCalled = true
				if r.URL.Path != "/v1/"+path {
					t.Fatalf("unexpected path: %s", r.URL.Path)
				}
				return &http.Response{
					StatusCode: http.StatusNoContent,
					Body:       io.NopCloser(bytes.NewReader(nil)),
					Header:     make(http.Header),
				}, nil
			default:
				return &http.Response{
					StatusCode: http.StatusMethodNotAllowed,
					Body:       io.NopCloser(bytes.NewReader(nil)),
					Header:     make(http.Header),
				}, nil
			}
		}),
	}
	var out struct {
		PrivateKeyHex string `json:"private_key_hex"`
	}
	if err := client.ReadKV(context.Background(), path, &out); err != nil {
		t.Fatalf("read kv: %v", err)
	}
	if out.PrivateKeyHex != "aa11" {
		t.Fatalf("unexpected read data: %v", out.PrivateKeyHex)
	}
	if err := client.WriteKV(context.Background(), path, map[string]string{"private_key_hex": "aa11"}); err != nil {
		t.Fatalf("write kv: %v", err)
	}
	if err := client.DeleteKV(context.Background(), path); err != nil {
		t.Fatalf("delete kv: %v", err)
	}
	if !readCalled || !writeCalled || !deleteCalled {
		t.Fatalf("expected read/write/delete calls, got read=%v write=%v delete=%v", readCalled, writeCalled, deleteCalled)
	}
}

func TestClient_ReadKVNotFound(t *testing.T) {
	t.Parallel()
	client := New("https://vault.example", "token")
	client.httpClient = &http.Client{
		Transport: roundTripFunc(func(*http.Request) (*http.Response, error) {
			return &http.Response{
				StatusCode: http.StatusNotFound,
				Body:       io.NopCloser(bytes.NewReader([]byte(`{"errors":[]}`))),
				Header:     make(http.Header),
			}, nil
		}),
	}
	var out map[string]any
	err := client.ReadKV(context.Background(), "secret/data/missing", &out)
	if !errors.Is(err, ErrSecretNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestClient_RequiresAddrAndToken(t *testing.T) {
	t.Parallel()
	if err := New("", "").DeleteKV(context.Background(), "secret/data/x"); err == nil {
		t.Fatal("expected error for missing addr and token")
	}
}
