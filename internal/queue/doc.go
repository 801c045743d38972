// Package queue persists dubbing jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store manages database connections, schema initialization, stats
// queries, stuck-job recovery, and the atomic claim used by workers to pick
// up pending work. Jobs capture the request parameters, step position,
// progress, and artifact paths so the pipeline and the API can coordinate
// without additional state.
//
// The database is treated as transient storage for in-flight jobs rather
// than a long-term archive. Schema changes bump the version in schema.go;
// users delete the database to adopt the new schema.
package queue
