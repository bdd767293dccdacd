// Package report turns fleet scrape outcomes into a serializable report,
// encodes it as JSON or YAML, writes it to a blob store, and announces the
// finished run on a notification topic.
package report
