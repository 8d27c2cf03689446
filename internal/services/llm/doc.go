// Package llm provides an OpenRouter-compatible chat completion client.
//
// The recipe pipeline sends one user-role prompt per request and receives
// the model's free-text reply. Authentication is a bearer API key; the
// optional referer and title are forwarded as OpenRouter attribution
// headers.
//
// # Retry Behaviour
//
// A single attempt is made by default. When retry_attempts is raised the
// client retries HTTP 408/429/5xx responses, empty completions, and network
// timeouts with exponential backoff (base 1s, max 10s), honouring
// Retry-After. Context cancellation aborts retries immediately.
//
// # Errors
//
// Failures are wrapped with services markers: ErrTimeout for deadlines,
// ErrConfiguration for a missing key or rejected credentials, and
// ErrUpstream for everything else the service returns.
package llm
