// Package snapshot stores decoded copies of record tables in a bbolt file.
//
// A snapshot captures every record of a view as msgpack, keyed by record
// index, together with the schema name and stride it was taken with.
// Restoring encodes the records back into any view with a matching layout,
// which makes it possible to checkpoint a data file or a guest memory table
// before editing it.
package snapshot
