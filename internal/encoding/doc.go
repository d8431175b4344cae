// Package encoding batches ready sequences into RAWcooked encodes.
//
// A Dispatcher lists one ready directory, skips sequences whose container or
// log already waits in the in-flight directory, and runs up to a batch of
// encodes on a bounded worker pool. Every encode's combined output is appended
// to <cooked>/<name>.mkv.txt whether or not the tool succeeded, so the
// post-cook audit always has something to scan. A failed encode is reported
// but never cancels its siblings and never moves the sequence.
package encoding
