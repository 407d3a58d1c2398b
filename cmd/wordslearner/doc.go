// Command wordslearner is the vocabulary comparison CLI and daemon.
//
// Most subcommands open the SQLite store directly: queue comparisons, browse
// history, generate and review storyboard lessons. `wordslearner daemon`
// runs the background task queue and the HTTP API; `wordslearner status`
// asks a running daemon for its state.
package main
