// Package migrate copies memory from one storage backend into a store.
//
// The usual source is the directory of JSON files written by earlier
// versions (see storage/jsonfile); any storage.Storage works. Records are
// imported in batches, each batch is persisted with retry and exponential
// backoff, and progress is reported to a writer as the import runs.
package migrate
