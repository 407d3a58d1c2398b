// Package services defines shared utilities consumed by the generation
// pipelines and their external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp task IDs, lesson IDs, stage names, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (configuration vs transient vs validation) with errors.Is.
//   - ProviderError, the failure taxonomy shared by the text, image, and audio
//     generation ports.
//
// Use these helpers when wiring new pipeline logic so operational behaviour
// (error handling, observability, retries) stays uniform.
package services
