package main

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"nftcate/internal/infra/cidutil"

	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestCIDMatchesContentStoreAddressing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diploma.png")
	data := []byte("\x89PNG\r\n\x1a\n diploma")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out, err := execute(t, "cid", path)
	require.NoError(t, err)
	want, err := cidutil.ForBytes(data)
	require.NoError(t, err)
	require.Equal(t, want.String(), strings.TrimSpace(out))
}

func TestMintSendsMultipartWithToken(t *testing.T) {
	var gotFields map[string]string
	var gotArtifact []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/certificate/mint", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotFields = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			gotFields[k] = v[0]
		}
		f, _, err := r.FormFile("image")
		require.NoError(t, err)
		gotArtifact, _ = io.ReadAll(f)
		_, _ = io.WriteString(w, `{"transaction":"0xabc","metadataCid":"bafkrei"}`)
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "cert.png")
	require.NoError(t, os.WriteFile(path, []byte("img"), 0o600))

	out, err := execute(t, "--url", srv.URL, "--token", "tok", "--out", "json", "mint",
		"--name", "Intro to Systems", "--description", "Completion",
		"--institution", "inst-1", "--student", "student-1", "--artifact", path)
	require.NoError(t, err)
	require.Equal(t, "inst-1", gotFields["institution"])
	require.Equal(t, "Intro to Systems", gotFields["name"])
	require.Equal(t, "img", string(gotArtifact))

	var printed map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &printed))
	require.Equal(t, "0xabc", printed["transaction"])
}

func TestMintRequiresFlags(t *testing.T) {
	_, err := execute(t, "mint", "--name", "x")
	require.ErrorContains(t, err, "are required")
}

func TestVerifyReportsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ipfs://bafkreimissing", body["link"])
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `{"code":"NOT_PINNED","message":"certificate content is not pinned","details":{"valid":false}}`)
	}))
	t.Cleanup(srv.Close)

	_, err := execute(t, "--url", srv.URL, "verify", "ipfs://bafkreimissing")
	require.ErrorContains(t, err, "code=NOT_PINNED")
	require.ErrorContains(t, err, "status=404")
}

func TestListRequiresExactlyOneFilter(t *testing.T) {
	_, err := execute(t, "list")
	require.Error(t, err)
	_, err = execute(t, "list", "--owner", "a", "--issuer", "b")
	require.Error(t, err)
}

func TestListEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "student-1", r.URL.Query().Get("owner"))
		_, _ = io.WriteString(w, `{"certificates":[]}`)
	}))
	t.Cleanup(srv.Close)

	out, err := execute(t, "--url", srv.URL, "list", "--owner", "student-1")
	require.NoError(t, err)
	require.Equal(t, `{"certificates":[]}`, strings.TrimSpace(out))
}
