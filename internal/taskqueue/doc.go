// Package taskqueue runs queued word comparisons in the background.
//
// A Manager owns one worker goroutine that polls the store for the oldest
// pending task, streams the comparison from the text generator and records
// the outcome. Only one task runs at a time. Stop cancels waiting but lets a
// task already in flight finish.
package taskqueue
