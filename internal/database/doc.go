// Package database provides SQLite-based storage for crawl results.
//
// This package implements the CrawlDB, which stores:
//   - Page records, one per URL, refreshed on every crawl
//   - Failure records for every crawl error
//   - Aggregated summaries for reports
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
//  1. The database is a single file next to the user's other data
//  2. The CGO-free driver keeps cross-compilation easy
//  3. WAL mode lets reports read while a crawl writes
package database
