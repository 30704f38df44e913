package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"linksort/internal/classify"
	"linksort/internal/config"
	"linksort/internal/linkstore"
	"linksort/internal/services/llm"
)

const (
	healthSystemPrompt = "You must respond with JSON only."
	healthUserPrompt   = `Respond with {"ok":true}`
)

// CheckProvider verifies that the provider's first model answers a tiny JSON
// request. It uses a 30-second timeout and a single attempt.
func CheckProvider(ctx context.Context, p config.Provider) Result {
	name := fmt.Sprintf("Provider %s (%s)", p.Name, p.Kind)
	if len(p.Models) == 0 {
		return Result{Name: name, Detail: "no models configured"}
	}
	if needsAPIKey(p.Kind) && strings.TrimSpace(p.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}
	model := p.Models[0].ID

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if p.Kind == config.ProviderOpenRouter {
		client := llm.NewClient(llm.Config{
			APIKey:         p.APIKey,
			BaseURL:        p.BaseURL,
			Referer:        p.Referer,
			Title:          p.Title,
			TimeoutSeconds: p.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1))
		if err := client.HealthCheck(checkCtx, model); err != nil {
			return Result{Name: name, Detail: summarizeLLMError(err)}
		}
		return Result{Name: name, Passed: true, Detail: model + " reachable"}
	}

	completer, err := classify.NewCompleter(checkCtx, p)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	raw, err := completer.CompleteJSON(checkCtx, model, healthSystemPrompt, healthUserPrompt)
	if err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	var parsed struct {
		OK bool `json:"ok"`
	}
	if err := llm.DecodeLLMJSON(raw, &parsed); err != nil || !parsed.OK {
		return Result{Name: name, Detail: "unexpected health response"}
	}
	return Result{Name: name, Passed: true, Detail: model + " reachable"}
}

func needsAPIKey(kind string) bool {
	switch kind {
	case config.ProviderOllama, config.ProviderBedrock:
		return false
	default:
		return true
	}
}

// CheckJobStore pings the durable job store.
func CheckJobStore(ctx context.Context, backend string, store Pinger) Result {
	name := fmt.Sprintf("Job store (%s)", backend)
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("unreachable (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "reachable"}
}

// CheckLinkStore opens the JSON link store and counts its contents. A missing
// file passes; it is created on first write.
func CheckLinkStore(ctx context.Context, path string) Result {
	const name = "Link store"
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (not created yet)", path)}
	}
	store, err := linkstore.OpenFile(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	tree, err := store.Export(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d links, %d folders)", path, len(tree.Items), len(tree.Folders))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeLLMError produces a human-readable summary for health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (provider unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (provider unreachable)"
	}
	return err.Error()
}
