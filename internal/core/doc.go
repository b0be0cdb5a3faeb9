// Package core runs sleep export imports.
//
// This package is the import pipeline, independent of any UI or transport
// layer. The HTTP server, the sleepctl CLI and tests all drive it through
// [Service.RunImport].
//
// # Pipeline
//
// A run moves through a fixed sequence of stages:
//
//  1. extracting: [archive.Extract] locates the CSV payload in the upload
//  2. parsing: [sleep.ParseAll] converts every record, failing on the first bad one
//  3. persisting: the [Persister] writes the batch in one transaction
//  4. done: an [ImportResult] reports total and new sessions
//
// Any failure ends the run in the failed stage and returns an [ImportError]
// naming the stage and the kind of the underlying error. Nothing is written
// unless every record parsed.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - ARC001-ARC002: archive errors (not an archive, no payload)
//   - PRS001-PRS005: parse errors (fields, timestamps, time zones, numbers)
//   - DB001-DB004: database errors (connection, schema, write, read)
//   - UPL001-UPL005: upload errors (content type, busy, size, cancelled, timeout)
//
// # Concurrency
//
// A Service keeps no per-run state. Remote callers hold a slot of
// [Service.Limiter] for the duration of a run so that shutdown can wait for
// them with [Service.WaitForImports].
package core
