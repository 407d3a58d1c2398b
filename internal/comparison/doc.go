// Package comparison builds the word-comparison prompt and runs interactive
// comparisons that stream to a writer and land in history.
package comparison
