// Package store defines the persistence contract for scraping runs.
// Implementations live in the storage packages; this package must not import
// database drivers or concrete clients.
package store
