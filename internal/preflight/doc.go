// Package preflight verifies a configured tree is usable before a run: stage
// directories exist and are writable, policy files are readable, and the
// external tools can be found.
package preflight
