package ipfs

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nftcate/internal/domain"
	"nftcate/internal/infra/cidutil"

	"github.com/stretchr/testify/require"
)

// kuboStub is a minimal Kubo RPC + gateway that addresses content the same way
// `ipfs add --cid-version=1 --raw-leaves` does for single-block files.
type kuboStub struct {
	mu      sync.Mutex
	objects map[string][]byte
	auth    string
	adds    int
}

func newKuboStub(t *testing.T) (*kuboStub, *httptest.Server) {
	t.Helper()
	stub := &kuboStub{objects: make(map[string][]byte)}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v0/add", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cid-version") != "1" || r.URL.Query().Get("pin") != "true" {
			http.Error(w, `{"Message":"bad query"}`, http.StatusBadRequest)
			return
		}
		user, pass, _ := r.BasicAuth()
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"Message":"missing file"}`, http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		loc, _ := cidutil.ForBytes(data)
		stub.mu.Lock()
		stub.objects[loc.String()] = data
		stub.auth = user + ":" + pass
		stub.adds++
		stub.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"Name":"`+header.Filename+`","Hash":"`+loc.String()+`","Size":"1"}`+"\n")
	})
	mux.HandleFunc("/api/v0/cat", func(w http.ResponseWriter, r *http.Request) {
		stub.serve(w, r.URL.Query().Get("arg"))
	})
	mux.HandleFunc("/ipfs/", func(w http.ResponseWriter, r *http.Request) {
		stub.serve(w, strings.TrimPrefix(r.URL.Path, "/ipfs/"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return stub, srv
}

func (s *kuboStub) serve(w http.ResponseWriter, id string) {
	s.mu.Lock()
	data, ok := s.objects[id]
	s.mu.Unlock()
	if !ok {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, `{"Message":"block was not found locally (offline)","Code":0,"Type":"error"}`)
		return
	}
	_, _ = w.Write(data)
}

func newTestClient(t *testing.T, cfg Config) *Client {
	t.Helper()
	if cfg.ResolveInitialDelay == 0 {
		cfg.ResolveInitialDelay = time.Millisecond
	}
	client, err := NewClient(cfg, nil)
	require.NoError(t, err)
	return client
}

func TestUploadIsIdempotentAndResolvable(t *testing.T) {
	stub, srv := newKuboStub(t)
	client := newTestClient(t, Config{
		APIURL:        srv.URL,
		GatewayURL:    srv.URL,
		ProjectID:     "project",
		ProjectSecret: "secret",
	})
	ctx := context.Background()

	first, err := client.UploadArtifact(ctx, []byte("certificate bytes"), "cert.png", nil)
	require.NoError(t, err)
	second, err := client.UploadArtifact(ctx, []byte("certificate bytes"), "cert.png", nil)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, "project:secret", stub.auth)

	metadata, err := client.UploadMetadata(ctx, domain.NewCertificateMetadata("Intro to Systems", "Completion", first))
	require.NoError(t, err)

	raw, err := client.Resolve(ctx, metadata)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"artifact":"`+first.String()+`"`)
	require.Contains(t, string(raw), `"image":"ipfs://`+first.String()+`"`)

	artifact, err := client.Resolve(ctx, first)
	require.NoError(t, err)
	require.Equal(t, "certificate bytes", string(artifact))
}

func TestResolveViaCatWithoutGateway(t *testing.T) {
	_, srv := newKuboStub(t)
	client := newTestClient(t, Config{APIURL: srv.URL})
	ctx := context.Background()

	loc, err := client.UploadArtifact(ctx, []byte("hello"), "", nil)
	require.NoError(t, err)
	data, err := client.Resolve(ctx, loc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func TestResolveNotFoundAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, Config{APIURL: srv.URL, GatewayURL: srv.URL, ResolveMaxTries: 3})

	loc, err := cidutil.ForBytes([]byte("never pinned"))
	require.NoError(t, err)
	_, err = client.Resolve(context.Background(), loc)
	require.ErrorIs(t, err, domain.ErrContentNotFound)
	require.EqualValues(t, 3, calls.Load())
}

func TestResolveRetriesUntilVisible(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusGatewayTimeout)
			return
		}
		_, _ = io.WriteString(w, "late content")
	}))
	t.Cleanup(srv.Close)
	client := newTestClient(t, Config{APIURL: srv.URL, GatewayURL: srv.URL, ResolveMaxTries: 5})

	loc, _ := cidutil.ForBytes([]byte("late content"))
	data, err := client.Resolve(context.Background(), loc)
	require.NoError(t, err)
	require.Equal(t, "late content", string(data))
	require.EqualValues(t, 3, calls.Load())
}

func TestUploadErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{name: "payload too large", status: http.StatusRequestEntityTooLarge, want: domain.ErrStoreRejected},
		{name: "bad request", status: http.StatusBadRequest, want: domain.ErrStoreRejected},
		{name: "unauthorized", status: http.StatusUnauthorized, want: domain.ErrStoreUnavailable},
		{name: "rate limited", status: http.StatusTooManyRequests, want: domain.ErrStoreUnavailable},
		{name: "server error", status: http.StatusBadGateway, want: domain.ErrStoreUnavailable},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, `{"Message":"nope"}`)
			}))
			t.Cleanup(srv.Close)
			client := newTestClient(t, Config{APIURL: srv.URL})
			_, err := client.UploadArtifact(context.Background(), []byte("x"), "x", nil)
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestUploadTransportFailureIsUnavailable(t *testing.T) {
	client := newTestClient(t, Config{APIURL: "http://ipfs.invalid"})
	client.httpDo = func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	}
	_, err := client.UploadArtifact(context.Background(), []byte("x"), "x", nil)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestUploadRejectsUnparsableHash(t *testing.T) {
	client := newTestClient(t, Config{APIURL: "http://ipfs.invalid"})
	client.httpDo = func(*http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`{"Name":"x","Hash":"not-a-cid"}`)),
		}, nil
	}
	_, err := client.UploadArtifact(context.Background(), []byte("x"), "x", nil)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
}

func TestUploadSizeCapSkipsNetwork(t *testing.T) {
	client := newTestClient(t, Config{APIURL: "http://ipfs.invalid", MaxUploadBytes: 4})
	client.httpDo = func(*http.Request) (*http.Response, error) {
		t.Fatal("unexpected network call")
		return nil, nil
	}
	_, err := client.UploadArtifact(context.Background(), []byte("too large"), "x", nil)
	require.ErrorIs(t, err, domain.ErrStoreRejected)
}

func TestUploadMetadataRequiresArtifactCID(t *testing.T) {
	client := newTestClient(t, Config{APIURL: "http://ipfs.invalid"})
	_, err := client.UploadMetadata(context.Background(), domain.CertificateMetadata{Name: "n", Description: "d", Artifact: "nope"})
	require.ErrorIs(t, err, domain.ErrStoreRejected)
}
