// Package rawcooked wraps the RAWcooked CLI: the reversibility probe run
// before a sequence is queued, and the encode that turns a DPX folder into a
// Matroska container with an optional framemd5 manifest.
package rawcooked
