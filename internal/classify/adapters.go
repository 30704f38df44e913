package classify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/google/generative-ai-go/genai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/bedrock"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"google.golang.org/api/option"

	"linksort/internal/config"
	"linksort/internal/services"
	"linksort/internal/services/llm"
)

// NewProviders builds one Provider per configured backend, preserving order.
func NewProviders(ctx context.Context, cfgs []config.Provider) ([]Provider, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, pc := range cfgs {
		completer, err := NewCompleter(ctx, pc)
		if err != nil {
			return nil, fmt.Errorf("provider %s: %w", pc.Name, err)
		}
		models := make([]Model, 0, len(pc.Models))
		for _, m := range pc.Models {
			models = append(models, Model{ID: m.ID, MaxItemsPerCall: m.MaxItemsPerCall, CallsPerMinute: m.CallsPerMinute})
		}
		providers = append(providers, Provider{Name: pc.Name, Kind: pc.Kind, Models: models, Completer: completer})
	}
	return providers, nil
}

// NewCompleter returns the adapter for the provider's kind. Adapters make a
// single request per call; Classify moves to the next model on failure.
func NewCompleter(ctx context.Context, pc config.Provider) (Completer, error) {
	switch pc.Kind {
	case config.ProviderOpenRouter:
		return llm.NewClient(llm.Config{
			APIKey:         pc.APIKey,
			BaseURL:        pc.BaseURL,
			Referer:        pc.Referer,
			Title:          pc.Title,
			TimeoutSeconds: pc.TimeoutSeconds,
		}, llm.WithRetryMaxAttempts(1)), nil
	case config.ProviderGemini:
		return newGeminiCompleter(ctx, pc)
	case config.ProviderOpenAI:
		return newLangchainCompleter(func(model string) (llms.Model, error) {
			opts := []openai.Option{openai.WithToken(pc.APIKey), openai.WithModel(model)}
			if pc.BaseURL != "" {
				opts = append(opts, openai.WithBaseURL(pc.BaseURL))
			}
			return openai.New(opts...)
		}), nil
	case config.ProviderAnthropic:
		return newLangchainCompleter(func(model string) (llms.Model, error) {
			opts := []anthropic.Option{anthropic.WithToken(pc.APIKey), anthropic.WithModel(model)}
			if pc.BaseURL != "" {
				opts = append(opts, anthropic.WithBaseURL(pc.BaseURL))
			}
			return anthropic.New(opts...)
		}), nil
	case config.ProviderOllama:
		return newLangchainCompleter(func(model string) (llms.Model, error) {
			opts := []ollama.Option{ollama.WithModel(model), ollama.WithFormat("json")}
			if pc.BaseURL != "" {
				opts = append(opts, ollama.WithServerURL(pc.BaseURL))
			}
			return ollama.New(opts...)
		}), nil
	case config.ProviderBedrock:
		loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRetryMaxAttempts(1)}
		if pc.Region != "" {
			loadOpts = append(loadOpts, awsconfig.WithRegion(pc.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "classify", "bedrock", "load aws config", err)
		}
		runtime := bedrockruntime.NewFromConfig(awsCfg)
		return newLangchainCompleter(func(model string) (llms.Model, error) {
			return bedrock.New(bedrock.WithClient(runtime), bedrock.WithModel(model))
		}), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "classify", "new completer", "unsupported provider kind "+pc.Kind, nil)
	}
}

// langchainCompleter adapts langchaingo models, one instance per model id.
type langchainCompleter struct {
	build  func(model string) (llms.Model, error)
	mu     sync.Mutex
	models map[string]llms.Model
}

func newLangchainCompleter(build func(model string) (llms.Model, error)) *langchainCompleter {
	return &langchainCompleter{build: build, models: make(map[string]llms.Model)}
}

func (c *langchainCompleter) model(id string) (llms.Model, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.models[id]; ok {
		return m, nil
	}
	m, err := c.build(id)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "langchain", "create model "+id, err)
	}
	c.models[id] = m
	return m, nil
}

func (c *langchainCompleter) CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	m, err := c.model(model)
	if err != nil {
		return "", err
	}
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}
	resp, err := m.GenerateContent(ctx, messages, llms.WithTemperature(0), llms.WithJSONMode())
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
		reason := ""
		if len(resp.Choices) > 0 {
			reason = resp.Choices[0].StopReason
		}
		return "", &llm.EmptyContentError{FinishReason: reason}
	}
	return resp.Choices[0].Content, nil
}

// geminiCompleter adapts the Google generative AI client.
type geminiCompleter struct {
	client  *genai.Client
	timeout time.Duration
}

func newGeminiCompleter(ctx context.Context, pc config.Provider) (*geminiCompleter, error) {
	if pc.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "gemini", "api key required", nil)
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(pc.APIKey))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "classify", "gemini", "create client", err)
	}
	return &geminiCompleter{client: client, timeout: time.Duration(pc.TimeoutSeconds) * time.Second}, nil
}

func (c *geminiCompleter) CompleteJSON(ctx context.Context, model, systemPrompt, userPrompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	gm := c.client.GenerativeModel(model)
	gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	gm.ResponseMIMEType = "application/json"
	gm.SetTemperature(0)

	resp, err := gm.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", services.Wrap(services.ErrTimeout, "classify", "gemini", "generate content", err)
		}
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	var b strings.Builder
	reason := ""
	for _, cand := range resp.Candidates {
		reason = cand.FinishReason.String()
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
		if b.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", &llm.EmptyContentError{FinishReason: reason}
	}
	return b.String(), nil
}
