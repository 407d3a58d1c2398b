// Package store persists wordslearner records in SQLite.
//
// Four record kinds live here: background comparison tasks, comparison
// history, multimodal lessons, and their frames. The store owns schema
// creation, busy-retry around writes, and the small state transitions the
// task queue and lesson generator depend on (for example CompleteTask, which
// updates the task and appends the history row in one transaction).
//
// Lookups return (nil, nil) when a row does not exist; updates that target a
// missing row return an error wrapping services.ErrNotFound.
package store
