// Package llm provides a client for OpenRouter-compatible chat completion
// endpoints that return JSON.
//
// One Client serves every model behind an endpoint; CompleteJSON takes the
// model id per call so a fallback chain can walk models without rebuilding
// clients. Requests ask for a JSON object response at temperature 0.
//
// # Retry Behaviour
//
// HTTP 408/429/5xx responses, empty completions, and network timeouts are
// retried with exponential backoff (base 1s, max 10s, 3 attempts by default),
// honouring Retry-After. Other failures return immediately. Context
// cancellation aborts retries.
//
// DecodeLLMJSON and ExtractJSON tolerate code fences and surrounding prose.
package llm
