// Package scraper holds the shared vocabulary of the module-description
// pipeline: item references, the scraped aggregate, the relational snapshot
// produced by the mapper, and the interfaces each stage implements.
package scraper
