// Package journal keeps an append-only SQLite history of stage transitions
// and holds for operator auditing.
//
// The journal is never consulted when routing: a sequence's stage is always
// whatever directory it currently lives in. Losing or deleting the database
// loses history only.
package journal
