// Package main provides the entry point for the politecrawl CLI.
//
// politecrawl is a polite web crawler. It paces requests per domain,
// honours robots.txt and keeps to an allow-list or block-list of domains.
//
// Usage:
//
//	politecrawl crawl https://example.com/
//	politecrawl crawl --allow example.com --delay 2s https://example.com/
//	politecrawl report --failures
//
// See --help for all available options.
package main

// main is the entry point for politecrawl.
func main() {
	Execute()
}
