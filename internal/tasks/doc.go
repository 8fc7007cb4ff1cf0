// Package tasks runs multi-request playlist operations with real-time progress reporting.
//
// # Core Operations
//
//  1. [PlaylistBuilder.Build] : create a playlist from a list of "title - artist" lines
//     - Searches every line concurrently, bounded by a worker limit and a request rate
//     - Keeps the first hit per line, in input order, without duplicates
//     - Creates the playlist and adds the matched tracks in batches
//     - Misses and per-line search errors are reported, not fatal
//
//  2. [PlaylistBuilder.BulkExport] : export several playlists to files
//     - Fetches each playlist and all of its tracks
//     - Writes JSON, CSV, Markdown or text through package formatter
//     - Writes an export_manifest.json summarizing the run
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data. Updates use select
// with default so a slow reader never stalls the operation.
package tasks
