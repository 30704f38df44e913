// Package classify turns batches of links into category paths by calling
// external models.
//
// A Client holds providers in preference order, each with an ordered model
// list. Classify walks that chain: every (provider, model) pair receives the
// items still unanswered, re-sliced to the model's max items per call and
// spaced by its calls-per-minute hint. Failures and omissions carry items to
// the next pair. Whatever remains after the last pair falls back to a learned
// pattern or the sentinel category, so a batch is degraded but never dropped.
//
// Provider adapters normalize OpenRouter (internal/services/llm), Gemini
// (generative-ai-go), and OpenAI, Anthropic, Ollama and Bedrock (langchaingo)
// behind the Completer interface. ParseResponse absorbs the different JSON
// shapes models produce.
package classify
