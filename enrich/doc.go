// Package enrich implements the link-following content-enrichment pipeline.
//
// Given a document's text, the pipeline extracts the absolute URLs it
// contains, fetches each one at most once per process (results, including
// failures, are cached for the process lifetime), strips the fetched HTML
// down to readable text, and appends a labeled block per URL to the original
// text. The enriched text is what gets chunked and indexed for Q&A.
//
// Flow:
//
//	document text
//	  -> ExtractURLs
//	  -> for each URL (first-appearance order):
//	       Cache lookup -> (miss) Fetcher.Fetch -> Cleaner.Clean -> cache store
//	  -> Enricher appends one block per URL (content or failure note)
//
// Failures are isolated per URL: a link that times out or returns 404 is
// recorded as a note in the enriched text and never aborts enrichment of the
// remaining links or the document upload itself.
package enrich
