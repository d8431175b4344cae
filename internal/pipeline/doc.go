// Package pipeline drives one pass of the preservation workflow: reconcile,
// assess, encode the v2 then the standard ready directory, and audit the
// results. A file lock in the log directory keeps runs over the same tree
// from overlapping, and every run leaves a JSON report behind.
package pipeline
