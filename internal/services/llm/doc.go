// Package llm provides the streaming chat-completions client behind the
// text-generation port.
//
// The client talks to an OpenAI-compatible endpoint (aihubmix by default) with
// stream=true and yields each content delta as it arrives over Server-Sent
// Events. Both the comparison worker and the storyboard planner consume it
// through the TextGenerator interface.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.StreamResponse: lazy iter.Seq2 of text fragments.
// Collect: drain a stream into a single string.
// DecodeJSON: tolerant JSON decoding for model output.
//
// # Retry Behaviour
//
// Opening the stream goes through retry.Default: HTTP 408/429/5xx and network
// failures are tried up to 3 times with backoff from 1s to 10s, and a
// Retry-After header wins over the schedule. Once fragments have been yielded
// the stream is never restarted.
// Context cancellation aborts retries immediately and closes an in-flight
// response body.
package llm
