// Package api defines the OpenAI-compatible wire types served by the
// WebBridge HTTP API.
//
// Clients built against the OpenAI chat completions schema can point at
// WebBridge unchanged. The types here mirror that schema: requests carry a
// model ID and a message history, responses come back as "chat.completion"
// objects or as a "chat.completion.chunk" SSE stream terminated by a
// "data: [DONE]" frame. Sampling fields the browser surfaces cannot honor
// (temperature, top_p, max_tokens) are validated and then ignored.
//
// # Endpoints
//
//	POST /v1/chat/completions   — completion; streams when "stream": true
//	GET  /v1/models             — model registry
//	GET  /health                — session states and service health
//
// # Authentication
//
// When API keys are configured, requests must carry one in the
// Authorization header:
//
//	Authorization: Bearer your-api-key
package api
