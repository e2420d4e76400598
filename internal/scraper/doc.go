// Package scraper provides the link-following scraper used by the
// politecrawl command.
//
// LinkScraper implements crawler.Scraper. For every fetched page it records
// a model.Page (status, title, content type, body digest) and enqueues the
// links it should follow with a model.PageState naming the referring page:
//
//	response → ParseHTML → pattern filter → visited filter → VisitWithState
//
// Links are filtered by glob patterns on the URL path (ignore first, then
// follow) and deduplicated with a bloom filter, so memory stays flat on
// large crawls at the cost of rarely skipping a never-seen URL.
package scraper
