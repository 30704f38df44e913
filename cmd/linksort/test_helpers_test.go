package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

type cliTestEnv struct {
	baseDir    string
	configPath string
	dataDir    string
	logDir     string
	linksFile  string
}

func setupCLITestEnv(t *testing.T, providerURL string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("NTFY_TOPIC", "")

	env := &cliTestEnv{
		baseDir:    base,
		configPath: filepath.Join(homeDir, ".config", "linksort", "config.toml"),
		dataDir:    filepath.Join(base, "data"),
		logDir:     filepath.Join(base, "logs"),
		linksFile:  filepath.Join(base, "data", "links.json"),
	}
	if err := os.MkdirAll(filepath.Dir(env.configPath), 0o755); err != nil {
		t.Fatalf("mkdir config dir: %v", err)
	}
	writeTestConfig(t, env, providerURL)
	return env
}

func writeTestConfig(t *testing.T, env *cliTestEnv, providerURL string) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\ndata_dir = %q\nlog_dir = %q\nsnapshot_dir = %q\nlinks_file = %q\n\n",
		env.dataDir, env.logDir, filepath.Join(env.baseDir, "snapshots"), env.linksFile)
	b.WriteString("[scheduler]\npoll_interval = 1\nbatch_delay = 0\n\n")
	b.WriteString("[organize]\nbatch_size = 2\n\n")
	if providerURL != "" {
		fmt.Fprintf(&b, "[[providers]]\nname = \"fake\"\nkind = \"openrouter\"\napi_key = \"test\"\nbase_url = %q\n\n", providerURL)
		b.WriteString("[[providers.models]]\nid = \"fake-model\"\nmax_items_per_call = 10\n")
	}
	if err := os.WriteFile(env.configPath, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", env.configPath}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

// fakeProvider answers OpenRouter-style chat completions. Taxonomy prompts get
// a fixed category list; classify prompts file every item under category.
type fakeProvider struct {
	category string

	mu    sync.Mutex
	calls int
}

func newFakeProvider(t *testing.T, category string) (*fakeProvider, *httptest.Server) {
	t.Helper()
	fp := &fakeProvider{category: category}
	srv := httptest.NewServer(http.HandlerFunc(fp.serve))
	t.Cleanup(srv.Close)
	return fp, srv
}

func (f *fakeProvider) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	var req struct {
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var user string
	for _, m := range req.Messages {
		if m.Role == "user" {
			user = m.Content
		}
	}

	var content any
	if idx := strings.Index(user, "{"); strings.HasPrefix(user, "Classify") && idx >= 0 {
		var payload struct {
			Items []struct {
				ID string `json:"id"`
			} `json:"items"`
		}
		if err := json.Unmarshal([]byte(user[idx:]), &payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		results := make([]map[string]any, 0, len(payload.Items))
		for _, it := range payload.Items {
			results = append(results, map[string]any{
				"itemId":       it.ID,
				"categoryPath": f.category,
				"confidence":   0.9,
			})
		}
		content = map[string]any{"results": results}
	} else {
		content = map[string]any{"categories": []string{f.category}}
	}

	encoded, _ := json.Marshal(content)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"choices": []map[string]any{{
			"message":       map[string]string{"content": string(encoded)},
			"finish_reason": "stop",
		}},
	})
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
