// Package main provides the entry point for the webharvest CLI.
//
// webharvest extracts structured records from web pages using
// configurable CSS and XPath selector maps, with polite crawling
// built in: robots.txt compliance, per-origin rate limiting, and
// bounded retries.
//
// Usage:
//
//	webharvest scrape [target...]
//	webharvest grab --url <url> -s name=selector
//	webharvest batch --file urls.txt
//
// See --help for all available options.
package main

// main is the entry point for webharvest.
func main() {
	Execute()
}
