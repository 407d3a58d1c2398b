// Package storyboard plans multi-story vocabulary lessons.
//
// A Plan holds two or more stories of exactly four frames each (setup,
// conflict, outcome, language_lock_in) plus a final conclusion with a verdict
// on whether the two words are interchangeable in the learner's sentence.
// Planner asks the text generator for a plan as raw JSON, decodes it into
// these types, and runs Validate as a separate pass. Parse and validation
// failures are retried with a note describing what went wrong.
package storyboard
