package preflight

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"linksort/internal/config"
	"linksort/internal/linkstore"
)

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func healthServer(t *testing.T, status int, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(content))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func openRouterProvider(baseURL, key string) config.Provider {
	return config.Provider{
		Name:    "primary",
		Kind:    config.ProviderOpenRouter,
		APIKey:  key,
		BaseURL: baseURL,
		Models:  []config.Model{{ID: "m1"}},
	}
}

func TestCheckProvider_OK(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{"choices":[{"message":{"content":"{\"ok\":true}"},"finish_reason":"stop"}]}`)
	result := CheckProvider(context.Background(), openRouterProvider(srv.URL, "good-key"))
	if !result.Passed {
		t.Fatalf("expected pass, got: %s", result.Detail)
	}
}

func TestCheckProvider_BadKey(t *testing.T) {
	srv := healthServer(t, http.StatusOK, `{}`)
	result := CheckProvider(context.Background(), openRouterProvider(srv.URL, "bad-key"))
	if result.Passed {
		t.Fatal("expected failure for bad key")
	}
	if !strings.Contains(result.Detail, "401") {
		t.Fatalf("expected status in detail, got %q", result.Detail)
	}
}

func TestCheckProvider_MissingKeyOrModels(t *testing.T) {
	p := openRouterProvider("http://localhost", "")
	if result := CheckProvider(context.Background(), p); result.Passed || result.Detail != "API key missing" {
		t.Fatalf("expected missing key failure, got %+v", result)
	}
	p.APIKey = "k"
	p.Models = nil
	if result := CheckProvider(context.Background(), p); result.Passed {
		t.Fatal("expected failure without models")
	}
}

func TestCheckJobStore(t *testing.T) {
	ok := CheckJobStore(context.Background(), "sqlite", pingFunc(func(context.Context) error { return nil }))
	if !ok.Passed {
		t.Fatalf("expected pass, got %s", ok.Detail)
	}
	bad := CheckJobStore(context.Background(), "redis", pingFunc(func(context.Context) error { return errors.New("refused") }))
	if bad.Passed || !strings.Contains(bad.Detail, "refused") {
		t.Fatalf("expected failure detail, got %+v", bad)
	}
}

func TestCheckLinkStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "links.json")
	if result := CheckLinkStore(context.Background(), path); !result.Passed {
		t.Fatalf("missing file should pass, got %s", result.Detail)
	}
	store, err := linkstore.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := store.AddLink(context.Background(), "Go", "https://go.dev", ""); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	result := CheckLinkStore(context.Background(), path)
	if !result.Passed || !strings.Contains(result.Detail, "1 links") {
		t.Fatalf("unexpected result %+v", result)
	}

	if err := os.WriteFile(path, []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}
	if result := CheckLinkStore(context.Background(), path); result.Passed {
		t.Fatal("expected corrupt store to fail")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(context.Background(), nil, nil, true); results != nil {
		t.Fatal("expected nil results for nil config")
	}
}

func TestRunAll_MinimalConfig(t *testing.T) {
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.DataDir = base
	cfg.Paths.LogDir = base
	cfg.Paths.SnapshotDir = base
	cfg.Paths.LinksFile = filepath.Join(base, "links.json")

	results := RunAll(context.Background(), &cfg, pingFunc(func(context.Context) error { return nil }), true)
	// Data, log, snapshot directories, link store, job store.
	if len(results) != 5 {
		t.Fatalf("expected 5 results, got %d: %+v", len(results), results)
	}
	if Failed(results) {
		t.Fatalf("unexpected failure: %+v", results)
	}
}
