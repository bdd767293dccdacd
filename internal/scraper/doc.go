// Package scraper drives CVMFS server scrapes.
//
// A Scraper resolves each server's backend (probing the self-description
// when asked to auto-detect), builds the sorted set of repositories to
// visit, fetches every repository's manifest and status record, collects
// the optional contact metadata, and issues one GeoAPI probe. Each server
// yields exactly one cvmfs.ScrapedServer: a complete snapshot or a failure
// carrying its cause. ScrapeFleet runs many servers concurrently and keeps
// their outcomes isolated and in input order.
package scraper
