// Package model defines the records produced by a politecrawl run.
//
// This package contains the following main types:
//   - PageState: the traversal state carried by every crawl request
//   - Page: one fetched page as seen by the link scraper
//   - Failure: one request that ended in a crawl error
//   - Summary: per-host and per-error-kind aggregates of a crawl
//
// Design decision: We keep the records in their own package because the
// scraper, the SQLite sink and the report writers all exchange them, and
// none of those should import another.
package model
