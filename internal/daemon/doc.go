// Package daemon coordinates the long-running wordslearner process.
//
// It wires the record store, the background task queue and the lesson
// generator into a single lifecycle guarded by a flock lock in the data
// directory, so only one worker ever polls a given database. At start it
// fails tasks a previous process left mid-flight. The daemon also serves the
// JSON HTTP API used by clients to queue comparisons, read history and start
// lessons.
package daemon
