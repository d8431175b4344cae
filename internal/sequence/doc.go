// Package sequence discovers DPX frame sequences inside stage directories and
// validates their frame numbering.
//
// A sequence is identified by its top-level folder name inside a stage
// directory. Locate finds the deepest frame-bearing directories beneath a
// root, Discover groups them into sequences, and FindGaps/CheckGaps report
// missing frame indices. Everything here reads the filesystem through
// fileutil.FS and never mutates it.
package sequence
