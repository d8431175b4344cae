// Package postcook audits the in-flight directory after encoding.
//
// Containers are paired with their cook logs, re-checked against the MKV
// policy, and their logs scanned for failure signatures. Passing pairs move
// to the completed stage together with the source folder and manifest they
// were cooked from; failing pairs move to a review folder, again taking their
// source with them. Orphans and tool failures stay where they are and are
// reported.
package postcook
